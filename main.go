// SPDX-License-Identifier: MPL-2.0

package main

import cmd "crucible-cli/cmd/crucible"

func main() {
	cmd.Execute()
}
