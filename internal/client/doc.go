// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

// Package client implements the kdbxctl command-line application.
//
// It reads credentials from the terminal, dispatches one subcommand to the
// database service and prints the result.
package client
