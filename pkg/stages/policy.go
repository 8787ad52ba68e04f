// Package stages holds the lifecycle-stage logic: counting contacts per
// stage and choosing the date property for stage-scoped deal queries.
package stages

import "github.com/Sternrassler/crm-proxy/pkg/client"

// CRM property names used by stage queries.
const (
	PropertyLifecycleStage = "lifecyclestage"
	PropertyDealStage      = "dealstage"
	PropertyCreateDate     = "createdate"
	PropertyCloseDate      = "closedate"
)

// DealStageClosedWon is the won state of the default deal pipeline.
const DealStageClosedWon = "closedwon"

// DefaultStages is the fixed list of lifecycle stages summarised by the
// total-count endpoint, in output order.
var DefaultStages = []string{"other", "lead", "opportunity", "subscriber", "customer"}

// DefaultContactStage is used when a contacts query names no stage.
const DefaultContactStage = "customer"

// datePropertyByStage maps a deal stage to the property its date range
// applies to. Stages not listed use PropertyCreateDate.
var datePropertyByStage = map[string]string{
	DealStageClosedWon: PropertyCloseDate,
}

// DateProperty returns the date property a date-range filter should use
// for deals in stage. An empty stage means "all stages".
func DateProperty(stage string) string {
	if prop, ok := datePropertyByStage[stage]; ok {
		return prop
	}
	return PropertyCreateDate
}

// DealFilters builds the filters for deals in [since, to]: a BETWEEN on
// the policy date property, plus a dealstage equality when stage is set.
func DealFilters(since, to, stage string) []client.Filter {
	filters := []client.Filter{{
		PropertyName: DateProperty(stage),
		Operator:     client.OperatorBetween,
		Value:        since,
		HighValue:    to,
	}}
	if stage != "" {
		filters = append(filters, client.Filter{
			PropertyName: PropertyDealStage,
			Operator:     client.OperatorEQ,
			Value:        stage,
		})
	}
	return filters
}

// LifecycleStageFilter matches contacts currently in stage.
func LifecycleStageFilter(stage string) client.Filter {
	return client.Filter{
		PropertyName: PropertyLifecycleStage,
		Operator:     client.OperatorEQ,
		Value:        stage,
	}
}
