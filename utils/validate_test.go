package utils

import "testing"

func TestValidDate(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected bool
	}{
		{"well-formed date", "2025-06-27", true},
		{"first of january", "2025-01-01", true},
		{"leap day", "2024-02-29", true},
		{"leap day on non-leap year", "2025-02-29", false},
		{"month out of range", "2025-13-01", false},
		{"day out of range", "2025-06-32", false},
		{"uk format", "27/06/2025", false},
		{"missing leading zeros", "2025-6-7", false},
		{"trailing garbage", "2025-06-27; DROP TABLE", false},
		{"datetime not date", "2025-06-27 08:00:00", false},
		{"empty", "", false},
		{"word", "today", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ValidDate(tt.input); got != tt.expected {
				t.Errorf("ValidDate(%q) = %v, expected %v", tt.input, got, tt.expected)
			}
		})
	}
}

func TestUKDate(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"normal date", "2025-06-27", "27/06/2025"},
		{"new year", "2025-01-01", "01/01/2025"},
		{"unparseable passes through", "not-a-date", "not-a-date"},
		{"empty passes through", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := UKDate(tt.input); got != tt.expected {
				t.Errorf("UKDate(%q) = %q, expected %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestNormalizeTime(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"valid morning time", "07:30", "07:30"},
		{"valid afternoon time", "14:45", "14:45"},
		{"midnight", "00:00", "00:00"},
		{"last minute of day", "23:59", "23:59"},
		{"surrounding spaces trimmed", " 09:15 ", "09:15"},
		{"hour out of range", "24:00", DefaultTime},
		{"minute out of range", "12:60", DefaultTime},
		{"missing leading zero", "8:00", DefaultTime},
		{"includes seconds", "08:00:00", DefaultTime},
		{"empty defaults", "", DefaultTime},
		{"garbage defaults", "morning", DefaultTime},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NormalizeTime(tt.input); got != tt.expected {
				t.Errorf("NormalizeTime(%q) = %q, expected %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestNormalizePriority(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"low", "low", "low"},
		{"medium", "medium", "medium"},
		{"high", "high", "high"},
		{"critical", "critical", "critical"},
		{"uppercase folded", "HIGH", "high"},
		{"mixed case folded", "Critical", "critical"},
		{"padded", "  low  ", "low"},
		{"unknown defaults", "urgent", DefaultPriority},
		{"empty defaults", "", DefaultPriority},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NormalizePriority(tt.input); got != tt.expected {
				t.Errorf("NormalizePriority(%q) = %q, expected %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestNormalizeStatus(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"active canonical", "Active", "Active"},
		{"lowercase restored", "active", "Active"},
		{"uppercase restored", "OFFSITE", "Offsite"},
		{"standby", "standby", "Standby"},
		{"delayed", "Delayed", "Delayed"},
		{"complete", "complete", "Complete"},
		{"unknown defaults", "Paused", DefaultStatus},
		{"empty defaults", "", DefaultStatus},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NormalizeStatus(tt.input); got != tt.expected {
				t.Errorf("NormalizeStatus(%q) = %q, expected %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestValidRole(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected bool
	}{
		{"user", "user", true},
		{"manager", "manager", true},
		{"admin", "admin", true},
		{"case sensitive", "Admin", false},
		{"superuser is not a role", "superuser", false},
		{"empty", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ValidRole(tt.input); got != tt.expected {
				t.Errorf("ValidRole(%q) = %v, expected %v", tt.input, got, tt.expected)
			}
		})
	}
}

func TestValidEmail(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected bool
	}{
		{"plain address", "site.manager@example.com", true},
		{"subdomain", "foreman@mail.site.co.uk", true},
		{"plus tag", "reports+dabs@example.com", true},
		{"missing at", "example.com", false},
		{"missing domain dot", "user@localhost", false},
		{"display name form rejected", "Site Manager <sm@example.com>", false},
		{"double at", "a@@example.com", false},
		{"empty", "", false},
		{"spaces inside", "a b@example.com", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ValidEmail(tt.input); got != tt.expected {
				t.Errorf("ValidEmail(%q) = %v, expected %v", tt.input, got, tt.expected)
			}
		})
	}
}

func BenchmarkValidDate(b *testing.B) {
	for i := 0; i < b.N; i++ {
		ValidDate("2025-06-27")
	}
}

func BenchmarkNormalizeTime(b *testing.B) {
	for i := 0; i < b.N; i++ {
		NormalizeTime("14:45")
	}
}

func BenchmarkNormalizePriority(b *testing.B) {
	for i := 0; i < b.N; i++ {
		NormalizePriority("Critical")
	}
}
