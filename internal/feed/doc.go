// Package feed reads classification ticks from the classifier and pushes
// them into an escalation session.
package feed
