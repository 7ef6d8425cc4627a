// Package audio plays the alarm sound by looping an external player command
// (paplay, afplay, mpg123, ...). Stopping kills the player, so the next loop
// always starts the sound from the beginning.
package audio
