// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package main is the entry point for the skh CLI.
package main

import (
	"os"

	"github.com/skillhive/skillhive/cmd/skh/app"
)

func main() {
	if err := app.NewRootCmd().Execute(); err != nil {
		os.Exit(app.RenderError(err))
	}
}
