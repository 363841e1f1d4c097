package tracker

// NoticeKind identifies a user-facing notice raised by the tracker.
type NoticeKind int

const (
	NoticeSkipBlocked NoticeKind = iota + 1
	NoticeFirstWatchFailed
	NoticeCompleted
	NoticeEmbedUnavailable
)

func (k NoticeKind) String() string {
	switch k {
	case NoticeSkipBlocked:
		return "skip_blocked"
	case NoticeFirstWatchFailed:
		return "first_watch_failed"
	case NoticeCompleted:
		return "completed"
	case NoticeEmbedUnavailable:
		return "embed_unavailable"
	default:
		return "unknown"
	}
}

// Notice is shown to the viewer. Transient notices are replaced by whatever
// is shown next.
type Notice struct {
	Kind      NoticeKind
	Message   string
	Position  float64 // playback position the notice refers to
	Transient bool
}

// Notifier displays notices. Implementations must be safe for concurrent use:
// persistence failures are reported from background goroutines.
type Notifier interface {
	Notify(n Notice)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(n Notice)

func (f NotifierFunc) Notify(n Notice) { f(n) }
