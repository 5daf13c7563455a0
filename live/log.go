package live

// Logging convention in the `live` package:
// Info:
//     essential events for abnormal behavior. This level should be silent on normal operation.
//     this includes:
//     - authoritative fetch failures (the counter keeps its previous value)
//     - suppressed subscriber callback panics
//     - abnormal exits
// Debug (glog.V(1) and up):
//     key lifecycle events with identities that can be used to filter
//     - stream state transitions, connect attempts
//     - registry acquire/release
// Frequent events - frame receive, fan out - are not logged per event.
