package notifier

// Stream identifies a named data stream. The set is closed: producers
// dispatch through StreamForMessageType rather than raw message types.
type Stream string

const (
	StreamMarketData Stream = "market_data"
	StreamSignals    Stream = "signals"
	StreamRiskAlerts Stream = "risk_alerts"
	StreamPortfolio  Stream = "portfolio_updates"
	StreamNews       Stream = "news"
	StreamSentiment  Stream = "sentiment"
	StreamWhale      Stream = "whale_transactions"
	StreamPrediction Stream = "prediction"
	StreamStrategy   Stream = "strategy"
	StreamPong       Stream = "pong"
	StreamErrors     Stream = "errors"

	// StreamConnection carries connection state changes and reconnect
	// exhaustion events.
	StreamConnection Stream = "connection"

	// StreamMessages receives every inbound socket envelope, including
	// ones whose type has no dedicated stream.
	StreamMessages Stream = "messages"
)

// StreamForMessageType maps an inbound envelope type to its dedicated
// stream. Returns false for unknown types, which are delivered only on
// StreamMessages.
func StreamForMessageType(msgType string) (Stream, bool) {
	switch msgType {
	case "market_data":
		return StreamMarketData, true
	case "signals":
		return StreamSignals, true
	case "risk_alerts":
		return StreamRiskAlerts, true
	case "portfolio_updates":
		return StreamPortfolio, true
	case "news":
		return StreamNews, true
	case "sentiment":
		return StreamSentiment, true
	case "whale_transactions":
		return StreamWhale, true
	case "prediction":
		return StreamPrediction, true
	case "strategy":
		return StreamStrategy, true
	case "pong":
		return StreamPong, true
	case "error":
		return StreamErrors, true
	}
	return "", false
}
