// Command posture-alarm runs a posture monitoring session and talks to a running one.
package main

import "github.com/oshokin/posture-alarm/cmd/posture-alarm/cmd"

func main() {
	cmd.Execute()
}
