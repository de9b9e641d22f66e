// Copyright 2025 NutriChat
// SPDX-License-Identifier: Apache-2.0

// Package main is the entry point for the NutriChat Gateway service.
package main

import (
	"nutrichat/backend/gateway"
)

func main() {
	gateway.Run()
}
