package compat

import (
	"fmt"
	"strings"

	"appdex/internal/model"
)

// signals is the flattened, lowercased view of one entry's toolkit and
// dependency declarations.
type signals struct {
	joined   string
	wayland  bool
	fallback bool
	x11      bool
}

// frameworkRule maps substring markers to a toolkit family. Rules are
// evaluated in order; the first match wins. Browser-embedded runtimes
// are checked before the generic toolkit markers because their
// manifests usually mention both.
type frameworkRule struct {
	framework model.Framework
	markers   []string
}

var frameworkRules = []frameworkRule{
	{model.FrameworkWebEngine, []string{"qtwebengine", "qt5-qtwebengine", "qt6-qtwebengine"}},
	{model.FrameworkElectron, []string{"electron"}},
	{model.FrameworkQt6, []string{"qt6", "kde6", "org.kde.platform/x86_64/6"}},
	{model.FrameworkQt5, []string{"qt5", "kde5", "org.kde.platform/x86_64/5"}},
	{model.FrameworkGTK4, []string{"gtk-4", "gtk4", "gnome-4", "org.gnome.platform"}},
	{model.FrameworkGTK3, []string{"gtk-3", "gtk3", "gnome-3"}},
}

// riskRule yields a risk level when it matches. The table is ordered by
// precedence; the first matching rule decides and rules are never
// combined by voting.
type riskRule struct {
	name    string
	matches func(f model.Framework, s model.DisplaySupport) bool
	risk    model.RiskLevel
}

var riskRules = []riskRule{
	{"x11-only", func(f model.Framework, s model.DisplaySupport) bool {
		return s == model.SupportX11Only
	}, model.RiskCritical},
	{"browser-embedded-runtime", func(f model.Framework, s model.DisplaySupport) bool {
		return f == model.FrameworkWebEngine || f == model.FrameworkElectron
	}, model.RiskHigh},
	{"native-qt6", func(f model.Framework, s model.DisplaySupport) bool {
		return s == model.SupportNative && f == model.FrameworkQt6
	}, model.RiskMedium},
	{"fallback-x11", func(f model.Framework, s model.DisplaySupport) bool {
		return s == model.SupportFallback
	}, model.RiskMedium},
	{"native-qt5", func(f model.Framework, s model.DisplaySupport) bool {
		return s == model.SupportNative && f == model.FrameworkQt5
	}, model.RiskMedium},
	{"native-gtk3", func(f model.Framework, s model.DisplaySupport) bool {
		return s == model.SupportNative && f == model.FrameworkGTK3
	}, model.RiskLow},
	{"native-gtk4", func(f model.Framework, s model.DisplaySupport) bool {
		return s == model.SupportNative && f == model.FrameworkGTK4
	}, model.RiskLow},
	{"native-toolkit", func(f model.Framework, s model.DisplaySupport) bool {
		return s == model.SupportNative && f == model.FrameworkNative
	}, model.RiskLow},
}

// Classify derives the compatibility verdict for one entry. It is a
// pure function: the same entry always yields the same assessment.
//
// An entry matching no risk rule is assessed Medium with reason
// "unclassified". Absence of signal is not evidence of safety, so the
// default is deliberately not Low.
func Classify(entry *model.CatalogEntry) model.Assessment {
	sig := collect(entry)
	fw := detectFramework(sig)
	support := detectSupport(sig)

	a := model.Assessment{
		ID:        entry.ID,
		Framework: fw,
		Support:   support,
	}
	if fw != model.FrameworkUnknown {
		a.Reasons = append(a.Reasons, fmt.Sprintf("framework: %s", fw))
	}
	if support != model.SupportUnknown {
		a.Reasons = append(a.Reasons, fmt.Sprintf("display: %s", support))
	}

	for _, rule := range riskRules {
		if rule.matches(fw, support) {
			a.Risk = rule.risk
			a.Reasons = append(a.Reasons, fmt.Sprintf("rule: %s", rule.name))
			return a
		}
	}

	a.Risk = model.RiskMedium
	a.Reasons = append(a.Reasons, "unclassified")
	return a
}

func collect(entry *model.CatalogEntry) signals {
	var b strings.Builder
	for _, tag := range entry.FrameworkTags {
		b.WriteString(strings.ToLower(tag))
		b.WriteByte('\n')
	}
	for _, hint := range entry.DependencyHints {
		b.WriteString(strings.ToLower(hint))
		b.WriteByte('\n')
	}
	joined := b.String()

	return signals{
		joined:   joined,
		wayland:  strings.Contains(joined, "wayland"),
		fallback: strings.Contains(joined, "fallback-x11"),
		x11:      containsPlainX11(joined),
	}
}

// containsPlainX11 reports an x11 marker that is not the fallback form.
func containsPlainX11(joined string) bool {
	rest := joined
	for {
		i := strings.Index(rest, "x11")
		if i < 0 {
			return false
		}
		if !strings.HasSuffix(rest[:i], "fallback-") {
			return true
		}
		rest = rest[i+len("x11"):]
	}
}

func detectFramework(sig signals) model.Framework {
	if sig.joined == "" {
		return model.FrameworkUnknown
	}
	for _, rule := range frameworkRules {
		for _, marker := range rule.markers {
			if strings.Contains(sig.joined, marker) {
				return rule.framework
			}
		}
	}
	return model.FrameworkNative
}

func detectSupport(sig signals) model.DisplaySupport {
	switch {
	case sig.wayland && !sig.x11 && !sig.fallback:
		return model.SupportNative
	case sig.wayland:
		return model.SupportFallback
	case sig.x11:
		return model.SupportX11Only
	default:
		return model.SupportUnknown
	}
}
