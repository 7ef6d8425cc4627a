// Package classification contains the classifier output model and the
// top-class selector.
//
// A Result is one tick of the feed: an ordered set of predictions where index
// 0 is always the alert class. TopIndex reduces a Result to the index of the
// most confident class.
package classification
