package model

// AppID identifies one application across the catalog, the stats cache
// and the icon store. IDs are stable across runs (reverse-DNS style,
// e.g. "org.example.App").
type AppID string

func (id AppID) String() string { return string(id) }

// CatalogEntry is one application's metadata record as parsed from a
// catalog document. Entries are immutable once parsed; downstream
// components reference them by ID.
type CatalogEntry struct {
	ID          AppID
	Name        string
	Summary     string
	Description string
	Origin      string

	// Categories are taken verbatim from the source document.
	Categories []string

	// FrameworkTags and DependencyHints carry the toolkit/runtime
	// signals the classifier evaluates.
	FrameworkTags   []string
	DependencyHints []string

	IconRef string

	// Extra holds source metadata fields that have no dedicated slot.
	Extra map[string]string
}

// RiskLevel is a coarse classification of likely display-server
// compatibility problems. Ordering matters: Low < Medium < High < Critical.
type RiskLevel int

const (
	RiskLow RiskLevel = iota
	RiskMedium
	RiskHigh
	RiskCritical
)

func (r RiskLevel) String() string {
	switch r {
	case RiskLow:
		return "low"
	case RiskMedium:
		return "medium"
	case RiskHigh:
		return "high"
	case RiskCritical:
		return "critical"
	default:
		return "unknown"
	}
}

// ParseRiskLevel maps a risk level name back to its value.
func ParseRiskLevel(s string) (RiskLevel, bool) {
	switch s {
	case "low":
		return RiskLow, true
	case "medium":
		return RiskMedium, true
	case "high":
		return RiskHigh, true
	case "critical":
		return RiskCritical, true
	default:
		return 0, false
	}
}

// Framework is the toolkit family detected for an application.
type Framework int

const (
	FrameworkUnknown Framework = iota
	FrameworkNative
	FrameworkGTK3
	FrameworkGTK4
	FrameworkQt5
	FrameworkQt6
	FrameworkWebEngine
	FrameworkElectron
)

func (f Framework) String() string {
	switch f {
	case FrameworkNative:
		return "native"
	case FrameworkGTK3:
		return "gtk3"
	case FrameworkGTK4:
		return "gtk4"
	case FrameworkQt5:
		return "qt5"
	case FrameworkQt6:
		return "qt6"
	case FrameworkWebEngine:
		return "webengine"
	case FrameworkElectron:
		return "electron"
	default:
		return "unknown"
	}
}

// DisplaySupport describes how an application talks to the display server.
type DisplaySupport int

const (
	SupportUnknown DisplaySupport = iota
	SupportNative
	SupportFallback
	SupportX11Only
)

func (s DisplaySupport) String() string {
	switch s {
	case SupportNative:
		return "native"
	case SupportFallback:
		return "fallback"
	case SupportX11Only:
		return "x11-only"
	default:
		return "unknown"
	}
}

// Assessment is the compatibility verdict for one catalog entry.
// Assessments are replaced wholesale on recomputation, never mutated.
type Assessment struct {
	ID        AppID
	Risk      RiskLevel
	Framework Framework
	Support   DisplaySupport

	// Reasons lists the rules that contributed to the verdict, in
	// evaluation order.
	Reasons []string
}

// StatsEntry is one application's popularity record from the stats
// cache artifact.
type StatsEntry struct {
	ID            AppID
	Downloads     uint64
	UpdatedAt     int64
	SchemaVersion uint16
}

// IndexRecord is the merged, searchable view of one application.
type IndexRecord struct {
	ID         AppID
	Entry      *CatalogEntry
	Assessment Assessment
	Stats      *StatsEntry // nil when the cache had no row for this app
}

// Downloads returns the merged download count, zero when stats are absent.
func (r *IndexRecord) Downloads() uint64 {
	if r == nil || r.Stats == nil {
		return 0
	}
	return r.Stats.Downloads
}

// IconState tracks the lifecycle of one icon asset.
type IconState int

const (
	IconAbsent IconState = iota
	IconPending
	IconReady
	IconPlaceholder
)

func (s IconState) String() string {
	switch s {
	case IconPending:
		return "pending"
	case IconReady:
		return "ready"
	case IconPlaceholder:
		return "placeholder"
	default:
		return "absent"
	}
}

// IconCacheEntry is one cached icon asset. Icon entries are lifecycled
// independently of index records.
type IconCacheEntry struct {
	ID        AppID
	State     IconState
	Format    string
	FetchedAt int64
	Data      []byte
}
