// Command assistant-alexa serves Alexa skill webhooks and manages the skill's
// interaction model.
package main

import "github.com/webcomputing/assistant-alexa/cmd/assistant-alexa/cmd"

func main() {
	cmd.Execute()
}
