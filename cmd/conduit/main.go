// Command conduit manages the conduit database: it prints and generates
// schema migrations, applies and rolls them back, and checks referential
// integrity of a live database.
package main

import "github.com/marshallshelly/conduit/cmd/conduit/commands"

func main() {
	commands.Execute()
}
