// Package timezones provides the TimezoneSelect form component: a select
// whose options come from an embedded IANA zone list. A node narrows the
// list with its search and limit props, and the field's current value is
// always kept among the options.
//
// Wire it into an engine with the options returned by Component.EngineOptions.
package timezones
