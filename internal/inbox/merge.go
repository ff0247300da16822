package inbox

import (
	"github.com/nhle/portal-inbox/internal/api"
	"github.com/nhle/portal-inbox/internal/model"
)

// mergeLocked folds a fetched page into the cache.
//
// Items touched locally after the fetch started (rev > startRev) win over
// the server copy: their read flag is kept, realtime inserts missing from
// page 1 stay at the head, and ids deleted locally stay deleted. The
// server's counters are taken as is when nothing changed locally while the
// fetch was in flight; otherwise they are corrected item by item, and
// for page 1 also for changes to items the page does not show.
func (s *Synchronizer) mergeLocked(res *api.Page, page int, startRev uint64) {
	local := make(map[string]entry, len(s.items))
	for _, e := range s.items {
		local[e.n.ID] = e
	}

	unreadAdj, totalAdj := 0, 0
	seen := make(map[string]bool, len(res.Notifications))
	merged := make([]entry, 0, len(res.Notifications))

	for _, n := range res.Notifications {
		if n.ID == "" || seen[n.ID] {
			continue
		}
		seen[n.ID] = true

		if t, ok := s.deleted[n.ID]; ok {
			if t.settled == 0 || t.settled > startRev {
				if !n.Read {
					unreadAdj--
				}
				totalAdj--
				continue
			}
			// Confirmed before this fetch started and the server still
			// has it: the server wins.
			delete(s.deleted, n.ID)
		}

		e := entry{n: n}
		if l, ok := local[n.ID]; ok && l.rev > startRev {
			switch {
			case l.n.Read && !n.Read:
				unreadAdj--
			case !l.n.Read && n.Read:
				unreadAdj++
			}
			e.n.Read = l.n.Read
			e.rev = l.rev
		} else if !n.Read && s.readAllRev > startRev && !n.CreatedAt.After(s.readAllAt) {
			e.n.Read = true
			e.rev = s.readAllRev
			unreadAdj--
		}
		merged = append(merged, e)
	}

	if page == 1 {
		var head []entry
		inHead := make(map[string]bool)
		for _, l := range s.items {
			if l.realtime && l.rev > startRev && !seen[l.n.ID] {
				head = append(head, l)
				inHead[l.n.ID] = true
				if !l.n.Read {
					unreadAdj++
				}
				totalAdj++
			}
		}
		s.items = append(head, merged...)

		// Changes issued after the request went out, on items the page does
		// not show, are not in the server's counters yet.
		for id, rev := range s.marks {
			if rev <= startRev {
				delete(s.marks, id)
				continue
			}
			if !seen[id] && !inHead[id] {
				unreadAdj--
			}
		}
		for id, t := range s.deleted {
			if t.settled != 0 && t.settled <= startRev {
				delete(s.deleted, id)
				continue
			}
			if t.present && t.rev > startRev && !seen[id] {
				totalAdj--
				if t.unread {
					unreadAdj--
				}
			}
		}
	} else {
		for _, e := range merged {
			if _, dup := local[e.n.ID]; dup {
				continue
			}
			s.items = append(s.items, e)
		}
	}

	switch {
	case page == 1 && s.readAllRev > startRev && s.coveredByReadAllLocked(merged, res):
		// The mark-all also covered every unread item past this page.
		s.unread = model.CountUnread(s.notificationsLocked())
		s.total = max(res.Total+totalAdj, len(s.items))
	case page == 1 || s.rev == startRev:
		s.unread = max(res.Unread+unreadAdj, 0)
		s.total = max(res.Total+totalAdj, len(s.items))
	default:
		// A later page fetched while local changes happened cannot see
		// those changes on earlier pages, so the local counters stay.
		s.total = max(s.total, len(s.items))
	}

	s.page = page
	s.hasMore = res.HasMore()
}

// coveredByReadAllLocked reports whether everything the server holds past
// this page is older than the last mark-all cutoff.
func (s *Synchronizer) coveredByReadAllLocked(merged []entry, res *api.Page) bool {
	if !res.HasMore() {
		return true
	}
	if len(merged) == 0 {
		return false
	}
	return !merged[len(merged)-1].n.CreatedAt.After(s.readAllAt)
}
