// Command bankcore-admin runs operator tasks against the ledger.
package main

import "bankcore/internal/cli"

func main() {
	cli.Execute()
}
