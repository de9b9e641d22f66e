// Copyright 2025 NutriChat
// SPDX-License-Identifier: Apache-2.0

// Package gateway implements the NutriChat HTTP gateway service.
//
// The gateway accepts chat messages over HTTP, enforces per-identity daily
// usage quotas and a send cooldown, forwards admitted messages to the hosted
// assistant, and returns the assistant's reply normalized for plain-text
// chat clients. It also exposes a payment webhook that activates
// subscriptions in the profile store, an admin endpoint to reset all usage
// counters, and the usual health and metrics surfaces.
package gateway
