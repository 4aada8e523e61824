// Package disable provides the business logic for managing the disablement of
// old secrets that have been rotated. Rotation retires the replaced secret as
// its last step, but when that step fails the old secret is simply left
// active. A followup disable run finds secrets like that which are older than
// the configured age and removes them.
package disable
