/*
 * BankFeed - Copyright (C) 2026 OpenLedger
 *
 * This program is free software; you can redistribute it and/or modify
 * it under the terms of the GNU General Public License version 2, and only
 * version 2 as published by the Free Software Foundation.
 *
 * This program is distributed in the hope that it will be useful,
 * but WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
 * GNU General Public License for more details.
 *
 * You should have received a copy of the GNU General Public License
 * along with this program; if not, write to the Free Software
 * Foundation, Inc., 59 Temple Place, Suite 330, Boston, MA  02111-1307  USA
 */

package store

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"
)

// TouchSchedule records that a scheduled run happened. Manually
// triggered runs skip this; only the scheduler's own cadence metadata
// is affected.
func TouchSchedule(ctx context.Context, rs RowStore, table, job string, ranAt time.Time) error {
	n, err := rs.Update(ctx, table,
		Row{"last_run_at": ranAt},
		Filter{"job_name": job})
	if err != nil {
		return err
	}

	if n == 0 {
		log.WithField("job", job).Warn("schedule_record_missing")
	}

	return nil
}
