package factmodel

import "strings"

// FrameworkBasenames is the known-framework set from spec.md §4.5's scorer
// signal table.
var FrameworkBasenames = map[string]bool{
	"node": true, "python": true, "python3": true, "java": true,
	"dotnet": true, "ruby": true, "php-fpm": true, "gunicorn": true,
	"uvicorn": true, "nginx": true, "httpd": true, "postgres": true,
	"mysqld": true, "mongod": true, "redis-server": true,
}

// systemNoisePrefixes matches basenames of the form "<prefix>/*" or
// "<prefix>*" from spec.md §4.5's system-noise set.
var systemNoisePrefixes = []string{"kworker/", "ksoftirqd/", "migration/", "rcu_", "systemd-"}

var systemNoiseExact = map[string]bool{
	"svchost": true, "dwm": true, "csrss": true, "lsass": true,
}

// NormalizeKernelThreadName strips the square brackets ps(1) uses around
// kernel thread names (e.g. "[kworker/0:1]") so prefix matching against
// systemNoisePrefixes works the same as for ordinary basenames.
func NormalizeKernelThreadName(name string) string {
	if strings.HasPrefix(name, "[") && strings.HasSuffix(name, "]") {
		return name[1 : len(name)-1]
	}
	return name
}

// IsFrameworkBasename reports whether name is in the known-framework set.
func IsFrameworkBasename(name string) bool {
	return FrameworkBasenames[name]
}

// IsSystemNoiseBasename reports whether name matches the system-noise set.
// "systemd-*" matches every systemd-prefixed name except the literal
// "systemd" init process, per spec.md §4.5.
func IsSystemNoiseBasename(name string) bool {
	name = NormalizeKernelThreadName(name)
	if systemNoiseExact[name] {
		return true
	}
	if name == "systemd" {
		return false
	}
	for _, prefix := range systemNoisePrefixes {
		if strings.HasPrefix(name, prefix) {
			return true
		}
	}
	return false
}
