package shared

// Queue names, highest priority first.
const (
	QueueCritical = "critical"
	QueueDefault  = "default"
	QueueLow      = "low"
)

// Task types
const (
	TypeSyncObservations       = "observation:sync"
	TypeRebuildGeoJSONCaches   = "observation:rebuild_geojson"
	TypeGenerateGeoJSON        = "observation:generate_geojson"
	TypeExpireReservations     = "reservation:expire"
	TypeAuditReservationCounts = "reservation:audit_counts"
	TypeGenerateExport         = "export:generate"
	TypeCleanupExports         = "export:cleanup"
)

// Context keys set by the auth middleware.
const (
	CtxUserID  = "userID"
	CtxIsStaff = "isStaff"
)
