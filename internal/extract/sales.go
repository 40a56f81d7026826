package extract

import (
	"sort"
	"strings"
)

// saleEvent is one buyer/seller transaction parsed from a property page's
// sale history.
type saleEvent struct {
	DateText string
	Date     saleDate
	HasDate  bool
	Price    string
	Buyer    string
	Seller   string
}

// eventSeparator joins repeated selector matches in a raw field; the
// parser produces it, the extractor splits on it.
const eventSeparator = " | "

// buildSaleEvents zips the parallel raw sale fields into events, drops
// exact duplicates (same date, buyer, seller and price) and orders them
// chronologically with undated events last. Mirrors how the site renders a
// sale timeline with occasionally repeated cards.
func buildSaleEvents(dates, prices, buyers, sellers string) []saleEvent {
	dateList := splitEvents(dates)
	priceList := splitEvents(prices)
	buyerList := splitEvents(buyers)
	sellerList := splitEvents(sellers)

	n := len(dateList)
	for _, l := range [][]string{priceList, buyerList, sellerList} {
		if len(l) > n {
			n = len(l)
		}
	}
	if n == 0 {
		return nil
	}

	pick := func(list []string, i int) string {
		if i < len(list) {
			return list[i]
		}
		return ""
	}

	seen := make(map[string]bool)
	var events []saleEvent
	for i := 0; i < n; i++ {
		ev := saleEvent{
			DateText: pick(dateList, i),
			Price:    normalizeMoney(pick(priceList, i)),
			Buyer:    stripPartyLabel(pick(buyerList, i)),
			Seller:   stripPartyLabel(pick(sellerList, i)),
		}
		if ev.DateText == "" && ev.Price == "" && ev.Buyer == "" && ev.Seller == "" {
			continue
		}
		ev.Date, ev.HasDate = parseSaleDate(ev.DateText)

		key := ev.DateText + "\x00" + ev.Buyer + "\x00" + ev.Seller + "\x00" + ev.Price
		if seen[key] {
			continue
		}
		seen[key] = true
		events = append(events, ev)
	}

	sort.SliceStable(events, func(i, j int) bool {
		if events[i].HasDate != events[j].HasDate {
			return events[i].HasDate
		}
		return events[i].Date.ISO < events[j].Date.ISO
	})

	return events
}

var partyLabel = func() func(string) string {
	replacer := strings.NewReplacer("Buyer:", "", "buyer:", "", "Seller:", "", "seller:", "", "Buyer", "", "Seller", "")
	return func(s string) string {
		return collapseSpace(replacer.Replace(s))
	}
}()

// stripPartyLabel removes the leading "Buyer:"/"Seller:" label the site
// renders inside party boxes.
func stripPartyLabel(s string) string {
	return partyLabel(s)
}

// pickOriginalPurchase selects the sale event whose buyer corresponds to
// the current owners, using tiered token matching from strongest to
// weakest signal: first-name containment, exact person-token equality,
// last-name containment, two-token overlap, then exact normalized string
// for non-organization owners. Returns nil when nothing matches.
func pickOriginalPurchase(currentOwners string, events []saleEvent) *saleEvent {
	if currentOwners == "" || len(events) == 0 {
		return nil
	}

	ownerFirst := firstNames(currentOwners)
	ownerPeople := personTokens(currentOwners)
	ownerLast := lastNames(currentOwners)
	ownersHaveOrg := orgMarker.MatchString(currentOwners)

	if len(ownerFirst) > 0 {
		for i := range events {
			if isSubset(ownerFirst, tokenSet(events[i].Buyer)) {
				return &events[i]
			}
		}
	}
	if len(ownerPeople) > 0 {
		for i := range events {
			if setsEqual(personTokens(events[i].Buyer), ownerPeople) {
				return &events[i]
			}
		}
	}
	if len(ownerLast) > 0 {
		for i := range events {
			if isSubset(ownerLast, tokenSet(events[i].Buyer)) {
				return &events[i]
			}
		}
	}
	if len(ownerPeople) > 0 {
		for i := range events {
			buyerTokens := personTokens(events[i].Buyer)
			if len(buyerTokens) > 0 && overlapCount(ownerPeople, buyerTokens) >= 2 {
				return &events[i]
			}
		}
	}
	if !ownersHaveOrg {
		ownerFold := foldKey(currentOwners)
		for i := range events {
			if foldKey(events[i].Buyer) == ownerFold {
				return &events[i]
			}
		}
	}

	return nil
}

// splitEvents splits a joined raw field back into per-event values.
func splitEvents(s string) []string {
	if collapseSpace(s) == "" {
		return nil
	}
	parts := strings.Split(s, eventSeparator)
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		out = append(out, collapseSpace(p))
	}
	return out
}
