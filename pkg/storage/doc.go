// Package storage persists crawl results.
//
// Items flow into a Sink once per round so a crash loses at most one round.
// JSONLines appends one object per item, Snapshot maintains a single JSON
// array per handle, and Postgres upserts into the creator, insta_post_info,
// comments and collab tables. MultiSink fans a write out to several sinks
// concurrently.
//
// MediaStore is separate: it holds downloaded image and video files named by
// media ID and writes them atomically through a temporary file.
//
//	jsonl, err := storage.OpenJSONLines("output/natgeo.jsonl")
//	if err != nil {
//		return err
//	}
//	sink := storage.NewMultiSink(jsonl, snapshot)
//	defer sink.Close()
//	err = sink.Write(ctx, "natgeo", items)
package storage
