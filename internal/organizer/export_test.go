package organizer

// SetBeforeMoveForTests installs a hook that runs between choosing a
// destination and moving the file.
func (o *Organizer) SetBeforeMoveForTests(hook func(destination string)) {
	o.beforeMove = hook
}
