/*
Package wire is the shared message envelope used by every agent, the
registry, the document coordinator, and the HTTP facade. Its only internal
import is pkg/ids (no imports of pkg/agent, pkg/scheduler, ...), which lets
every other package depend on it without import cycles.
*/
package wire
