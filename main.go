// SPDX-License-Identifier: MPL-2.0

package main

import cmd "github.com/runnerd/runnerd/cmd/runnerd"

func main() {
	cmd.Execute()
}
