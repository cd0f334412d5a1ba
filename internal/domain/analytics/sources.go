package analytics

import "strings"

// Reporting buckets for acquisition sources.
const (
	SourceGoogle          = "Google"
	SourceSocial          = "FB / Insta / WhatsApp"
	SourceYouTube         = "YouTube"
	SourceWebsite         = "Website"
	SourceListings        = "Practo / Justdial"
	SourceDoctorReferral  = "Doctor Referral"
	SourcePatientReferral = "Patient Referral"
	SourcePrintOutdoor    = "Print / Outdoor"
	SourceWalkIn          = "Walk-in"
	SourceCamp            = "Health Camp"
	SourceOthers          = "Others"
)

// sourceBuckets maps raw intake values (lower-cased) to their bucket.
var sourceBuckets = map[string]string{
	"google":                SourceGoogle,
	"google ads":            SourceGoogle,
	"google search":         SourceGoogle,
	"gmb":                   SourceGoogle,
	"facebook":              SourceSocial,
	"fb":                    SourceSocial,
	"instagram":             SourceSocial,
	"insta":                 SourceSocial,
	"whatsapp":              SourceSocial,
	"fb / insta / whatsapp": SourceSocial,
	"youtube":               SourceYouTube,
	"website":               SourceWebsite,
	"web":                   SourceWebsite,
	"practo":                SourceListings,
	"justdial":              SourceListings,
	"just dial":             SourceListings,
	"practo / justdial":     SourceListings,
	"doctor referral":       SourceDoctorReferral,
	"doctor":                SourceDoctorReferral,
	"referral doctor":       SourceDoctorReferral,
	"patient referral":      SourcePatientReferral,
	"friends / family":      SourcePatientReferral,
	"friends/family":        SourcePatientReferral,
	"word of mouth":         SourcePatientReferral,
	"hoarding":              SourcePrintOutdoor,
	"newspaper":             SourcePrintOutdoor,
	"pamphlet":              SourcePrintOutdoor,
	"print / outdoor":       SourcePrintOutdoor,
	"walk-in":               SourceWalkIn,
	"walk in":               SourceWalkIn,
	"walkin":                SourceWalkIn,
	"camp":                  SourceCamp,
	"health camp":           SourceCamp,
}

// onlineSources lists the canonical and raw names counted as online.
var onlineSources = map[string]bool{
	strings.ToLower(SourceGoogle):   true,
	strings.ToLower(SourceSocial):   true,
	strings.ToLower(SourceYouTube):  true,
	strings.ToLower(SourceWebsite):  true,
	strings.ToLower(SourceListings): true,
	"google ads":                    true,
	"google search":                 true,
	"gmb":                           true,
	"facebook":                      true,
	"fb":                            true,
	"instagram":                     true,
	"insta":                         true,
	"whatsapp":                      true,
	"web":                           true,
	"practo":                        true,
	"justdial":                      true,
	"just dial":                     true,
}

// CanonicalSource maps a raw source to its reporting bucket. Free text
// entered as "Other: ..." and anything unknown land in Others.
func CanonicalSource(raw string) string {
	s := strings.ToLower(strings.TrimSpace(raw))
	if strings.HasPrefix(s, "other:") {
		return SourceOthers
	}
	if b, ok := sourceBuckets[s]; ok {
		return b
	}
	return SourceOthers
}

// IsOnline reports whether a raw source counts as online.
func IsOnline(raw string) bool {
	s := strings.ToLower(strings.TrimSpace(raw))
	if onlineSources[s] {
		return true
	}
	return onlineSources[strings.ToLower(CanonicalSource(raw))]
}
