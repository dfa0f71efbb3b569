// SPDX-License-Identifier: MPL-2.0

package main

import cmd "github.com/rtpx/rtpx/cmd/rtpx"

func main() {
	cmd.Execute()
}
