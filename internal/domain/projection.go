package domain

// Order projection helpers consumed by the confirmation view. Progress is the
// single source of truth for timeline rendering: steps light up by numeric
// threshold, so an unexpected status degrades to an empty timeline instead of
// breaking the page.

// TimelineStep describes one milestone of the confirmation timeline.
type TimelineStep struct {
	Key       string
	Label     string
	Threshold int
	Reached   bool
}

var statusProgress = map[OrderStatus]int{
	OrderStatusPending:   25,
	OrderStatusConfirmed: 50,
	OrderStatusShipped:   75,
	OrderStatusDelivered: 100,
	OrderStatusCancelled: 0,
}

var statusLabels = map[OrderStatus]string{
	OrderStatusPending:   "En attente de confirmation",
	OrderStatusConfirmed: "Commande confirmée",
	OrderStatusShipped:   "Commande expédiée",
	OrderStatusDelivered: "Commande livrée",
	OrderStatusCancelled: "Commande annulée",
}

var statusColors = map[OrderStatus]string{
	OrderStatusPending:   "amber",
	OrderStatusConfirmed: "blue",
	OrderStatusShipped:   "violet",
	OrderStatusDelivered: "green",
	OrderStatusCancelled: "red",
}

// StatusProgress maps a status to its completion percentage. Unknown statuses
// report zero progress.
func StatusProgress(status OrderStatus) int {
	return statusProgress[status]
}

// StatusLabel returns the customer-facing French label for a status.
func StatusLabel(status OrderStatus) string {
	if label, ok := statusLabels[status]; ok {
		return label
	}
	return string(status)
}

// StatusColor returns the display color channel associated with a status.
func StatusColor(status OrderStatus) string {
	if color, ok := statusColors[status]; ok {
		return color
	}
	return "gray"
}

// Timeline builds the four milestone steps for the given status. Reached is
// derived from the progress value, never from the status name.
func Timeline(status OrderStatus) []TimelineStep {
	progress := StatusProgress(status)
	steps := []TimelineStep{
		{Key: "pending", Label: statusLabels[OrderStatusPending], Threshold: 25},
		{Key: "confirmed", Label: statusLabels[OrderStatusConfirmed], Threshold: 50},
		{Key: "shipped", Label: statusLabels[OrderStatusShipped], Threshold: 75},
		{Key: "delivered", Label: statusLabels[OrderStatusDelivered], Threshold: 100},
	}
	for i := range steps {
		steps[i].Reached = progress >= steps[i].Threshold
	}
	return steps
}
