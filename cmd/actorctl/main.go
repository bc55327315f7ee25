// Copyright 2020 The Monogon Project Authors.
//
// SPDX-License-Identifier: Apache-2.0
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Command actorctl is a troubleshooting tool for a running actor runtime: it
// drains buffered dump records and inspects AddressBook state over the
// remote gRPC seam, the way metroctl is a troubleshooting tool for a running
// Metropolis cluster.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "actorctl",
	Short: "Inspect and troubleshoot a running actor runtime",
}

var addrFlag string

func init() {
	rootCmd.PersistentFlags().StringVar(&addrFlag, "addr", "localhost:7472", "address of the target node's remote seam")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
