// Package shipper publishes a compiled build artifact after a CI run.
//
// A publish run derives a release identifier from CI context, compresses the
// build output directory into a single archive, fans the archive out to the
// configured upload providers and aggregates one result per provider. When
// the release belongs to the early-access channel the aggregated result is
// encrypted before it is returned.
//
// # Basic Usage
//
//	release, err := shipper.DetectRelease(os.Getenv("GITHUB_REF"), os.Getenv("GITHUB_SHA"))
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	artifact := shipper.NewArtifact(shipper.ArtifactSpec{
//	    Project:   "waifu2x",
//	    Platform:  "linux",
//	    Device:    "cuda",
//	    SourceDir: "dist/waifu2x",
//	}, release)
//
//	pub, err := shipper.NewPublisher(shipper.WithRegistry(reg), shipper.WithSecretKey(key))
//	outcome, err := pub.Publish(ctx, artifact, release, specs)
//	json.NewEncoder(os.Stdout).Encode(outcome)
//
// # Provider Groups
//
// Providers in the primary group run one after another before the secondary
// group starts. Secondary providers run concurrently and the run waits for
// all of them. A failing provider never stops its siblings; it yields a
// failure result instead.
//
// # Outcome
//
// An Outcome serializes to "[]" when there was nothing to publish, to an
// array of provider payloads otherwise, or to a single encrypted string for
// early releases.
package shipper
