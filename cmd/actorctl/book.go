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

package main

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"source.monogon.dev/actor/addr"
	"source.monogon.dev/actor/remote"
)

var bookCmd = &cobra.Command{
	Use:   "book",
	Short: "Inspect a node's AddressBook",
}

var bookInspectCmd = &cobra.Command{
	Use:   "inspect [addr]",
	Short: "Probe a single address by attempting to deliver a no-op ping to it",
	Long: `Probe a single address by attempting to deliver a no-op ping to it.

This relies on the target actor silently dropping unrecognized message
types, which is the expected behavior for any well-behaved Exec loop; a
"delivered" result means the address currently resolves to something with a
live mailbox, not that the target understood the probe.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		raw, err := strconv.ParseUint(args[0], 0, 64)
		if err != nil {
			return fmt.Errorf("parsing address %q: %w", args[0], err)
		}
		target := addr.Addr(raw)

		ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
		defer cancel()

		cc, err := grpc.DialContext(ctx, addrFlag,
			grpc.WithTransportCredentials(insecure.NewCredentials()),
			grpc.WithBlock(),
		)
		if err != nil {
			return fmt.Errorf("dialing %s: %w", addrFlag, err)
		}
		defer cc.Close()

		client := remote.NewClient(cc)
		resp, err := client.SendMessage(ctx, target, remote.Probe{})
		if err != nil {
			return fmt.Errorf("probing %s: %w", target, err)
		}
		if resp.Delivered {
			fmt.Printf("%s: delivered\n", target)
		} else {
			fmt.Printf("%s: not delivered (%s)\n", target, resp.Error)
		}
		return nil
	},
}

func init() {
	bookCmd.AddCommand(bookInspectCmd)
	rootCmd.AddCommand(bookCmd)
}
