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

package ingest

import (
	"context"
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/openledger/bankfeed/sheet"
	"github.com/openledger/bankfeed/store"
)

// Reconcile cross-links newly inserted statement rows into the bank
// ledger. For every row carrying an acquirer private reference, the
// payment ledger is consulted for the matching payment; the bank-ledger
// row sharing that reference gets its link set, but only on a
// null-to-value transition. Re-running is therefore safe: an existing
// link is never overwritten.
func (e *Engine) Reconcile(ctx context.Context, inserted []sheet.Record) (int, error) {
	linked := 0

	for _, rec := range inserted {
		ref := rec[sheet.KeyAcquirerPrivateData]
		if ref == "" {
			continue
		}

		payments, err := e.cfg.Store.Select(ctx, e.cfg.PaymentTable,
			store.Filter{sheet.KeyPaymentReference: ref},
			[]string{sheet.KeyPaymentNumber})
		if err != nil {
			log.WithError(err).WithField("reference", ref).Warn("reconcile_payment_lookup_failed")
			continue
		}

		if len(payments) == 0 {
			continue
		}

		paymentNumber := fmt.Sprint(payments[0][sheet.KeyPaymentNumber])

		n, err := e.cfg.Store.Update(ctx, e.cfg.LedgerTable,
			store.Row{sheet.KeyPaymentNumber: paymentNumber},
			store.Filter{
				sheet.KeyPaymentReference: ref,
				sheet.KeyPaymentNumber:    nil,
			})
		if err != nil {
			log.WithError(err).WithField("reference", ref).Warn("reconcile_link_failed")
			continue
		}

		if n > 0 {
			log.WithFields(log.Fields{
				"reference":      ref,
				"payment_number": paymentNumber,
				"rows":           n,
			}).Info("reconcile_linked")
			linked += int(n)
		}
	}

	return linked, nil
}
