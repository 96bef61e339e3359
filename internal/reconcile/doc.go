// Package reconcile applies the optimizer's placements to the calendar
// store.
//
// Event parts are partitioned twice: by event id into update groups (the
// fragments of one logical event) and by group id into validate groups
// (placements that competed for the same resource). Every logical event is
// written through a single calendar.Store.ApplyEventChange call, so an
// event is either fully updated (placement, buffers and reminders) or left
// untouched. Events are independent; one failing event never stops the
// others.
package reconcile
