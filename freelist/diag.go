package freelist

// Diagnostic logging. Every call here is guarded implicitly: a nil
// logger's Builder chain is itself a no-op (see logiface's Logger.Build
// nil-receiver handling), so these helpers cost nothing when no logger
// was configured via WithLogger.

func (f *Freelist) logOverflowSplit(chunkID, newChunkID uint32) {
	f.logger.Debug().
		Str(`event`, `overflow_split`).
		Int(`chunk`, int(chunkID)).
		Int(`new_chunk`, int(newChunkID)).
		Log(`extent chunk was full, stole a cell from its own tail to host a new one`)
}

func (f *Freelist) logRootPromoted(newRoot uint32) {
	f.logger.Debug().
		Str(`event`, `root_promoted`).
		Int(`new_root`, int(newRoot)).
		Log(`root extent chunk emptied, successor promoted to root`)
}

func (f *Freelist) logChunkReclaimed(chunkID uint32, wasRoot bool) {
	f.logger.Debug().
		Str(`event`, `chunk_reclaimed`).
		Int(`chunk`, int(chunkID)).
		Bool(`was_root`, wasRoot).
		Log(`emptied extent chunk spliced out and its cell returned to the freelist`)
}

func (f *Freelist) logExhausted(requested uint32) {
	f.logger.Info().
		Str(`event`, `exhausted`).
		Int(`requested`, int(requested)).
		Log(`allocate found no free cells at all`)
}
