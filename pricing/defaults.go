// Copyright 2025 AgentCost
// SPDX-License-Identifier: Apache-2.0

package pricing

import "github.com/shopspring/decimal"

// CatalogEntry is one model in the baseline pricing catalog.
type CatalogEntry struct {
	Model       string
	Provider    string
	InputPer1K  decimal.Decimal
	OutputPer1K decimal.Decimal
	Tier        ModelTier
}

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// DefaultCatalog is the baseline per-1K-token USD pricing seeded on first
// start and refreshed by SyncDefaults. Admin-overridden quotes are never
// touched by the sync.
var DefaultCatalog = []CatalogEntry{
	// OpenAI
	{Model: "gpt-4", Provider: "openai", InputPer1K: d("0.03"), OutputPer1K: d("0.06"), Tier: TierPremium},
	{Model: "gpt-4-32k", Provider: "openai", InputPer1K: d("0.06"), OutputPer1K: d("0.12"), Tier: TierPremium},
	{Model: "gpt-4-turbo", Provider: "openai", InputPer1K: d("0.01"), OutputPer1K: d("0.03"), Tier: TierPremium},
	{Model: "gpt-4o", Provider: "openai", InputPer1K: d("0.0025"), OutputPer1K: d("0.01"), Tier: TierStandard},
	{Model: "gpt-4o-mini", Provider: "openai", InputPer1K: d("0.00015"), OutputPer1K: d("0.0006"), Tier: TierEconomy},
	{Model: "gpt-3.5-turbo", Provider: "openai", InputPer1K: d("0.0015"), OutputPer1K: d("0.002"), Tier: TierEconomy},
	{Model: "o1-preview", Provider: "openai", InputPer1K: d("0.015"), OutputPer1K: d("0.06"), Tier: TierPremium},
	{Model: "o1-mini", Provider: "openai", InputPer1K: d("0.003"), OutputPer1K: d("0.012"), Tier: TierStandard},

	// Anthropic
	{Model: "claude-3-opus", Provider: "anthropic", InputPer1K: d("0.015"), OutputPer1K: d("0.075"), Tier: TierPremium},
	{Model: "claude-3-5-sonnet", Provider: "anthropic", InputPer1K: d("0.003"), OutputPer1K: d("0.015"), Tier: TierStandard},
	{Model: "claude-3-5-haiku", Provider: "anthropic", InputPer1K: d("0.0008"), OutputPer1K: d("0.004"), Tier: TierEconomy},
	{Model: "claude-3-haiku", Provider: "anthropic", InputPer1K: d("0.00025"), OutputPer1K: d("0.00125"), Tier: TierEconomy},

	// Google
	{Model: "gemini-1.5-pro", Provider: "google", InputPer1K: d("0.00125"), OutputPer1K: d("0.005"), Tier: TierStandard},
	{Model: "gemini-1.5-flash", Provider: "google", InputPer1K: d("0.000075"), OutputPer1K: d("0.0003"), Tier: TierEconomy},
	{Model: "gemini-2.0-flash", Provider: "google", InputPer1K: d("0.0001"), OutputPer1K: d("0.0004"), Tier: TierEconomy},

	// Mistral
	{Model: "mistral-large-latest", Provider: "mistral", InputPer1K: d("0.002"), OutputPer1K: d("0.006"), Tier: TierStandard},
	{Model: "mistral-small-latest", Provider: "mistral", InputPer1K: d("0.001"), OutputPer1K: d("0.003"), Tier: TierEconomy},

	// Cohere
	{Model: "command-r-plus", Provider: "cohere", InputPer1K: d("0.003"), OutputPer1K: d("0.015"), Tier: TierStandard},
	{Model: "command-r", Provider: "cohere", InputPer1K: d("0.0005"), OutputPer1K: d("0.0015"), Tier: TierEconomy},
}

// CatalogTier returns the catalog tier for a model, or "" when the model is
// not in the baseline catalog.
func CatalogTier(model string) ModelTier {
	for _, e := range DefaultCatalog {
		if e.Model == model {
			return e.Tier
		}
	}
	return ""
}
