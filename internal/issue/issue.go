// SPDX-License-Identifier: MPL-2.0

package issue

import (
	"errors"
	"syscall"

	"github.com/rtpx/rtpx/internal/rterr"

	"github.com/charmbracelet/glamour"
	"golang.org/x/exp/slices"
)

type Id int

const (
	PermissionDeniedId Id = iota + 1
	RegistryFullId
	InvalidArgumentId
	UnsupportedPlatformId
	ConfigLoadFailedId
	ScriptFailedId
	ServeFailedId
)

type MarkdownMsg string

type HttpLink string

type Issue struct {
	id       Id          // ID used to lookup the issue
	mdMsg    MarkdownMsg // Markdown text that will be rendered
	docLinks []HttpLink
	extLinks []HttpLink // external links that might be useful for the user
}

func (i *Issue) Id() Id {
	return i.id
}

func (i *Issue) MarkdownMsg() MarkdownMsg {
	return i.mdMsg
}

func (i *Issue) DocLinks() []HttpLink {
	return slices.Clone(i.docLinks)
}

func (i *Issue) ExtLinks() []HttpLink {
	return slices.Clone(i.extLinks)
}

// Render renders the issue as terminal Markdown using the glamour style at stylePath
// ("" selects the dark style).
func (i *Issue) Render(stylePath string) (string, error) {
	if stylePath == "" {
		stylePath = "dark"
	}
	md := string(i.mdMsg)
	if len(i.docLinks) > 0 || len(i.extLinks) > 0 {
		md += "\n\n## See also\n"
		for _, link := range i.docLinks {
			md += "- <" + string(link) + ">\n"
		}
		for _, link := range i.extLinks {
			md += "- <" + string(link) + ">\n"
		}
	}
	return render(md, stylePath)
}

var (
	render = glamour.Render

	permissionDeniedIssue = &Issue{
		id: PermissionDeniedId,
		mdMsg: `
# Permission denied!

The kernel refused a real-time operation. Real-time scheduling and memory
locking are privileged.

## Things you can try:
- Grant the binary the capabilities it needs:
~~~
$ sudo setcap cap_sys_nice,cap_ipc_lock+ep "$(command -v rtpx)"
~~~
- Raise the real-time priority limit for your user in
  /etc/security/limits.conf (rtprio) and log in again
- Raise the locked-memory limit before locking memory:
~~~
$ ulimit -l unlimited
~~~
- Inspect the current limits:
~~~
$ rtpx mem status
~~~`,
		extLinks: []HttpLink{
			"https://man7.org/linux/man-pages/man7/sched.7.html",
			"https://man7.org/linux/man-pages/man2/mlock.2.html",
		},
	}

	registryFullIssue = &Issue{
		id: RegistryFullId,
		mdMsg: `
# Worker registry is full!

Every slot of the registry has been used. Slots are never reused, so a
long-running process eventually runs out.

## Things you can try:
- Raise the capacity in your config file:
~~~cue
registry: capacity: 200000
~~~
- Or for a single run:
~~~
$ RTPX_REGISTRY_CAPACITY=200000 rtpx run ...
~~~`,
	}

	invalidArgumentIssue = &Issue{
		id: InvalidArgumentId,
		mdMsg: `
# Invalid argument!

A clock, policy, lock scope, handle or number was not recognized.

## Accepted values:
- Clocks: REALTIME, MONOTONIC, PROCESS_CPUTIME, THREAD_CPUTIME
- Policies: SCHED_OTHER, SCHED_FIFO, SCHED_RR
- Lock scopes: MCL_CURRENT, MCL_FUTURE, MCL_BOTH
- Nanoseconds: 0 to 999999999`,
	}

	unsupportedPlatformIssue = &Issue{
		id: UnsupportedPlatformId,
		mdMsg: `
# Platform not supported!

Clocks, scheduling classes and memory locking are only implemented on Linux.

## Things you can try:
- Run rtpx on a Linux host or inside a Linux VM`,
	}

	configLoadFailedIssue = &Issue{
		id: ConfigLoadFailedId,
		mdMsg: `
# Failed to load configuration!

The config file could not be read or does not match the schema.

## Things you can try:
- Show where rtpx looks for the file:
~~~
$ rtpx config path
~~~
- Write a fresh default file and edit it:
~~~
$ rtpx config init
~~~
- Check RTPX_* environment variables, they override the file`,
	}

	scriptFailedIssue = &Issue{
		id: ScriptFailedId,
		mdMsg: `
# Script failed!

A worker script could not be parsed or exited with a non-zero status.
Details were written to the diagnostic log.

## Things you can try:
- Run with debug logging:
~~~
$ RTPX_LOG_LEVEL=debug rtpx run ...
~~~
- External binaries are disabled unless allowed:
~~~
$ rtpx run --allow-external ...
~~~`,
	}

	serveFailedIssue = &Issue{
		id: ServeFailedId,
		mdMsg: `
# Failed to start the SSH endpoint!

## Things you can try:
- Pick another port:
~~~
$ rtpx serve --port 0
~~~
- Check that the host key path is writable`,
	}

	issues = map[Id]*Issue{
		permissionDeniedIssue.Id():    permissionDeniedIssue,
		registryFullIssue.Id():        registryFullIssue,
		invalidArgumentIssue.Id():     invalidArgumentIssue,
		unsupportedPlatformIssue.Id(): unsupportedPlatformIssue,
		configLoadFailedIssue.Id():    configLoadFailedIssue,
		scriptFailedIssue.Id():        scriptFailedIssue,
		serveFailedIssue.Id():         serveFailedIssue,
	}
)

// Values returns every catalog entry ordered by Id.
func Values() []*Issue {
	out := make([]*Issue, 0, len(issues))
	for _, i := range issues {
		out = append(out, i)
	}
	slices.SortFunc(out, func(a, b *Issue) int { return int(a.id) - int(b.id) })
	return out
}

func Get(id Id) *Issue {
	return issues[id]
}

// ForError picks the catalog entry that explains err, if any.
func ForError(err error) (*Issue, bool) {
	if err == nil {
		return nil, false
	}
	var id Id
	switch {
	case errors.Is(err, syscall.ENOSYS):
		id = UnsupportedPlatformId
	case errors.Is(err, rterr.ErrPermissionDenied):
		id = PermissionDeniedId
	case errors.Is(err, rterr.ErrResourceExhausted):
		id = RegistryFullId
	case errors.Is(err, rterr.ErrInvalidArgument):
		id = InvalidArgumentId
	default:
		return nil, false
	}
	return Get(id), true
}
