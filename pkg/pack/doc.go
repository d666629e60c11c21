// Package pack defines the subscription pack catalog: purchasable tiers,
// the entitlement (monthly quotas and feature flags) attached to each tier,
// and the Source interface used to resolve packs by ID.
//
// A single Pack type covers every tier variant. Family packs are regular
// packs with KindFamily and a non-zero MaxChildren on their entitlement,
// so catalog lookups never need to consult more than one source.
//
// Two Source implementations ship with the package: an in-memory source for
// tests and static deployments, and a YAML-backed source for catalogs kept
// in configuration files.
package pack
