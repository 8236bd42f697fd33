/*
Package atomicfile writes a file so that readers see either the old
content or the complete new content, never a partial file.

Data goes to a temporary file in the destination directory. Commit()
syncs it, renames it over the destination and syncs the directory.
If anything fails, the temporary file is removed and the destination
is left untouched.

	f, err := atomicfile.New(path)
	if err != nil {
		return err
	}
	// no-op after Commit()
	defer f.Cancel()

	if _, err = io.Copy(f, r); err != nil {
		return err
	}
	return f.Commit()

Package repair uses it to write archives of record files.
*/
package atomicfile
