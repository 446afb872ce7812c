// Copyright 2025 AgentCost
// SPDX-License-Identifier: Apache-2.0

package pricing

import "github.com/shopspring/decimal"

var perThousand = decimal.NewFromInt(1000)

// CalculateCost computes the monetary cost of a call from its token counts
// and an effective quote:
//
//	cost = inputTokens/1000 * InputPer1K + outputTokens/1000 * OutputPer1K
//
// Decimal arithmetic throughout; zero tokens cost zero. Token counts must be
// validated non-negative before this is called.
func CalculateCost(inputTokens, outputTokens int64, quote *PriceQuote) decimal.Decimal {
	inputCost := decimal.NewFromInt(inputTokens).Div(perThousand).Mul(quote.InputPer1K)
	outputCost := decimal.NewFromInt(outputTokens).Div(perThousand).Mul(quote.OutputPer1K)
	return inputCost.Add(outputCost)
}
