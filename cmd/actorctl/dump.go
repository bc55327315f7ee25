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
	"io"
	"time"

	"github.com/spf13/cobra"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"source.monogon.dev/actor/remote"
)

var dumpCmd = &cobra.Command{
	Use:   "dump",
	Short: "Inspect a node's dump stream",
}

var dumpDrainCmd = &cobra.Command{
	Use:   "drain",
	Short: "Drain and print every currently queued dump item",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
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
		stream, err := client.Drain(ctx)
		if err != nil {
			return fmt.Errorf("opening drain stream: %w", err)
		}

		for {
			item, err := stream.Recv()
			if err == io.EOF {
				return nil
			}
			if err != nil {
				return fmt.Errorf("receiving drain item: %w", err)
			}
			fmt.Printf("#%d %s.%s %s/%s %s %s %s\n",
				item.Sequence, item.Group, item.Key, item.Class, item.Name, item.Direction, item.Kind, item.Message)
		}
	},
}

func init() {
	dumpCmd.AddCommand(dumpDrainCmd)
	rootCmd.AddCommand(dumpCmd)
}
