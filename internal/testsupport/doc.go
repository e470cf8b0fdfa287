// Package testsupport provides shared fixtures for package tests: a config
// builder rooted in per-test temp directories, image files, and a journal store.
package testsupport
