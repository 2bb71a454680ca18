package factmodel

import "sort"

// SharedPIDConflict records two or more services claiming the same
// MainPID/ProcessId; the analyzer emits one as a "services_sharing_pid"
// decision for every name after the winner (DESIGN.md open question
// resolution, SPEC_FULL.md §9(b)).
type SharedPIDConflict struct {
	PID      int
	Services []string // sorted byte-wise; Services[0] is the correlation winner
}

// Correlation is the result of linking services to processes by
// MainPID/ProcessId (spec.md §4.4).
type Correlation struct {
	// PrimaryService maps a pid to the single service name that wins
	// correlation when multiple services claim it.
	PrimaryService map[int]string
	Conflicts      []SharedPIDConflict
}

// Correlate links services to processes by MainPID, resolving ties by
// picking the service name that sorts first byte-wise as the winner.
func Correlate(mainPIDByService map[string]int) Correlation {
	byPID := make(map[int][]string)
	for name, pid := range mainPIDByService {
		byPID[pid] = append(byPID[pid], name)
	}

	primary := make(map[int]string)
	var conflicts []SharedPIDConflict
	pids := make([]int, 0, len(byPID))
	for pid := range byPID {
		pids = append(pids, pid)
	}
	sort.Ints(pids)

	for _, pid := range pids {
		names := byPID[pid]
		sort.Strings(names)
		primary[pid] = names[0]
		if len(names) > 1 {
			conflicts = append(conflicts, SharedPIDConflict{PID: pid, Services: names})
		}
	}

	return Correlation{PrimaryService: primary, Conflicts: conflicts}
}
