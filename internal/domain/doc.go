// Package domain holds the value types shared by every layer of the batch
// geocoder: the resolved Query, the polymorphic MatchResult returned by the
// engine, the flat output Record and its ordered attribute schema, and the
// collaborator interfaces (Geocoder, Reprojector) the core calls through.
//
// # Match variants
//
// A MatchResult is a tagged union. Kind is MatchKindAddress when Address is
// populated and MatchKindIntersection when Intersection is populated. Engines
// that return anything else produce MatchKindUnknown, which the projector
// maps to the default value of every variant-specific attribute.
//
// # Output records
//
// Every Record carries the same 38 attributes in the order returned by
// Attributes. Text attributes are never null; numbers, dates, enums and the
// location may be null when the engine did not supply them.
//
// # Spatial references
//
// Records are always emitted in NAD83 / BC Albers (EPSG:3005, two
// dimensions). Request geometry given in another reference is reprojected by
// a Reprojector before it reaches the engine.
package domain
