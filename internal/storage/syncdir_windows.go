package storage

// os.Open on a directory does not give a handle FlushFileBuffers accepts.
func syncDir(string) error { return nil }
