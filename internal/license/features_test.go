package license

import "testing"

func TestFeaturesForTierInclusion(t *testing.T) {
	team := FeaturesForTier(TierTeam)
	pro := FeaturesForTier(TierProfessional)
	ent := FeaturesForTier(TierEnterprise)

	if len(team) >= len(pro) || len(pro) >= len(ent) {
		t.Fatalf("feature counts team=%d pro=%d ent=%d, want strictly increasing", len(team), len(pro), len(ent))
	}

	// Higher tiers include everything below them.
	for _, f := range team {
		if !TierHasFeature(TierProfessional, f) || !TierHasFeature(TierEnterprise, f) {
			t.Errorf("feature %q missing from a higher tier", f)
		}
	}
	for _, f := range pro {
		if !TierHasFeature(TierEnterprise, f) {
			t.Errorf("professional feature %q missing from enterprise", f)
		}
	}
}

func TestTierHasFeature(t *testing.T) {
	tests := []struct {
		tier    Tier
		feature Feature
		want    bool
	}{
		{TierTeam, FeatureCoreTools, true},
		{TierTeam, FeatureBulkOperations, false},
		{TierTeam, FeatureSSO, false},
		{TierProfessional, FeatureBulkOperations, true},
		{TierProfessional, FeatureAPIAccess, true},
		{TierProfessional, FeatureSSO, false},
		{TierEnterprise, FeatureSSO, true},
		{TierEnterprise, FeatureSandboxSync, true},
	}

	for _, tt := range tests {
		if got := TierHasFeature(tt.tier, tt.feature); got != tt.want {
			t.Errorf("TierHasFeature(%q, %q) = %v, want %v", tt.tier, tt.feature, got, tt.want)
		}
	}
}

func TestFeaturesForUnknownTier(t *testing.T) {
	got := FeaturesForTier(Tier("platinum"))
	want := FeaturesForTier(TierTeam)
	if len(got) != len(want) {
		t.Fatalf("unknown tier got %d features, want the team set (%d)", len(got), len(want))
	}
}

func TestFeatureNames(t *testing.T) {
	names := FeatureNames(TierTeam)
	if len(names) != 1 || names[0] != string(FeatureCoreTools) {
		t.Fatalf("FeatureNames(team) = %v, want [core_tools]", names)
	}
}

func TestTierIsValid(t *testing.T) {
	for _, tier := range ValidTiers() {
		if !tier.IsValid() {
			t.Errorf("IsValid(%q) = false", tier)
		}
	}
	if Tier("gold").IsValid() {
		t.Error("IsValid(gold) = true, want false")
	}
}
