package metrics

// ============================================================================
// Metric Names
// ============================================================================

// HTTP metric names
const (
	MetricNameHTTPRequestsTotal    = "http_requests_total"
	MetricNameHTTPRequestDuration  = "http_request_duration_seconds"
	MetricNameHTTPRequestsInFlight = "http_requests_in_flight"
)

// Event metric names
const (
	MetricNameEventsPublished    = "events_published_total"
	MetricNameEventHandlerErrors = "event_handler_errors_total"
)

// Farm metric names
const (
	MetricNameCropsPlanted     = "crops_planted_total"
	MetricNameCropsHarvested   = "crops_harvested_total"
	MetricNameHarvestUnits     = "harvest_units_total"
	MetricNameStealsResolved   = "steals_resolved_total"
	MetricNameItemsSold        = "items_sold_total"
	MetricNameItemsBought      = "items_bought_total"
	MetricNameCoinsEarned      = "coins_earned_total"
	MetricNameCoinsSpent       = "coins_spent_total"
	MetricNameLevelUps         = "level_ups_total"
	MetricNameTicketsFired     = "scheduler_tickets_fired_total"
	MetricNameTaskRuns         = "task_runs_total"
)

// ============================================================================
// Metric Help Text
// ============================================================================

// HTTP metric help text
const (
	HelpTextHTTPRequestsTotal    = "Total number of HTTP requests"
	HelpTextHTTPRequestDuration  = "HTTP request latency in seconds"
	HelpTextHTTPRequestsInFlight = "Current number of HTTP requests being served"
)

// Event metric help text
const (
	HelpTextEventsPublished    = "Total number of events published"
	HelpTextEventHandlerErrors = "Total number of event handler errors"
)

// Farm metric help text
const (
	HelpTextCropsPlanted   = "Total number of plots planted"
	HelpTextCropsHarvested = "Total number of plots harvested"
	HelpTextHarvestUnits   = "Total crop units gained from harvests"
	HelpTextStealsResolved = "Total number of resolved steal attempts"
	HelpTextItemsSold      = "Total number of items sold to the shop"
	HelpTextItemsBought    = "Total number of items bought from the shop"
	HelpTextCoinsEarned    = "Total coins earned from selling items"
	HelpTextCoinsSpent     = "Total coins spent buying items"
	HelpTextLevelUps       = "Total number of player level-ups"
	HelpTextTicketsFired   = "Total number of scheduler entries fired"
	HelpTextTaskRuns       = "Total number of maintenance task runs"
)

// ============================================================================
// Metric Label Names
// ============================================================================

// Common label names used across metrics
const (
	LabelMethod  = "method"
	LabelPath    = "path"
	LabelStatus  = "status"
	LabelType    = "type"
	LabelCrop    = "crop"
	LabelItem    = "item"
	LabelOutcome = "outcome"
	LabelKind    = "kind"
	LabelJob     = "job"
)

// Task run outcome label values
const (
	OutcomeOK    = "ok"
	OutcomeError = "error"
)

// ============================================================================
// Histogram Buckets
// ============================================================================

// HTTPLatencyBuckets defines the histogram buckets for HTTP request duration
// in seconds. These buckets range from 1ms to 10s to capture various latency
// patterns: fast (1-10ms), normal (10-100ms), slow (100ms-1s), very slow (1-10s)
var HTTPLatencyBuckets = []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10}
