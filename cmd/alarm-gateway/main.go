// Command alarm-gateway relays notification requests to an SMS vendor.
package main

import "github.com/oshokin/posture-alarm/cmd/alarm-gateway/cmd"

func main() {
	cmd.Execute()
}
