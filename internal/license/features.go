package license

// Feature represents a gated capability name.
type Feature string

const (
	// FeatureCoreTools enables the standard integration tool set (all tiers).
	FeatureCoreTools Feature = "core_tools"
	// FeatureBulkOperations enables batched record operations (Professional+).
	FeatureBulkOperations Feature = "bulk_operations"
	// FeatureScriptedTools enables user-defined scripted tools (Professional+).
	FeatureScriptedTools Feature = "scripted_tools"
	// FeatureCustomReports enables report builder access (Professional+).
	FeatureCustomReports Feature = "custom_reports"
	// FeatureAPIAccess enables programmatic API access (Professional+).
	FeatureAPIAccess Feature = "api_access"
	// FeatureSSO enables single sign-on integration (Enterprise).
	FeatureSSO Feature = "sso"
	// FeatureAuditExport enables audit trail export (Enterprise).
	FeatureAuditExport Feature = "audit_export"
	// FeatureSandboxSync enables sandbox instance synchronization (Enterprise).
	FeatureSandboxSync Feature = "sandbox_sync"
	// FeaturePrioritySupport flags the account for priority support (Enterprise).
	FeaturePrioritySupport Feature = "priority_support"
)

// featureAccess maps each tier to the features it unlocks. Higher tiers
// include everything below them.
var featureAccess = map[Tier][]Feature{
	TierTeam: {
		FeatureCoreTools,
	},
	TierProfessional: {
		FeatureCoreTools,
		FeatureBulkOperations,
		FeatureScriptedTools,
		FeatureCustomReports,
		FeatureAPIAccess,
	},
	TierEnterprise: {
		FeatureCoreTools,
		FeatureBulkOperations,
		FeatureScriptedTools,
		FeatureCustomReports,
		FeatureAPIAccess,
		FeatureSSO,
		FeatureAuditExport,
		FeatureSandboxSync,
		FeaturePrioritySupport,
	},
}

// FeaturesForTier returns the features unlocked by the given tier.
// Unrecognized tiers get the Team feature set.
func FeaturesForTier(tier Tier) []Feature {
	features, ok := featureAccess[tier]
	if !ok {
		return featureAccess[TierTeam]
	}
	return features
}

// FeatureNames returns the tier's features as plain strings for wire use.
func FeatureNames(tier Tier) []string {
	features := FeaturesForTier(tier)
	names := make([]string, len(features))
	for i, f := range features {
		names[i] = string(f)
	}
	return names
}

// TierHasFeature reports whether the tier unlocks the feature.
func TierHasFeature(tier Tier, feature Feature) bool {
	for _, f := range FeaturesForTier(tier) {
		if f == feature {
			return true
		}
	}
	return false
}
