package safety_stock

// GroupDemand buckets records by item-org key. Keys are returned in the
// order they are first seen.
func GroupDemand(records []DemandRecord) ([]GroupKey, map[GroupKey][]DemandRecord) {
	order := make([]GroupKey, 0)
	groups := make(map[GroupKey][]DemandRecord)
	for _, rec := range records {
		key := rec.Key()
		if _, ok := groups[key]; !ok {
			order = append(order, key)
		}
		groups[key] = append(groups[key], rec)
	}
	return order, groups
}

// GroupForecast is GroupDemand for forecast rows.
func GroupForecast(records []ForecastRecord) ([]GroupKey, map[GroupKey][]ForecastRecord) {
	order := make([]GroupKey, 0)
	groups := make(map[GroupKey][]ForecastRecord)
	for _, rec := range records {
		key := rec.Key()
		if _, ok := groups[key]; !ok {
			order = append(order, key)
		}
		groups[key] = append(groups[key], rec)
	}
	return order, groups
}

// IndexItemMaster builds the lookup used by both estimators. When the same
// key appears more than once the first row wins; the number of ignored
// duplicates is returned.
func IndexItemMaster(master []ItemMasterRecord) (map[GroupKey]ItemMasterRecord, int) {
	index := make(map[GroupKey]ItemMasterRecord, len(master))
	duplicates := 0
	for _, m := range master {
		key := m.Key()
		if _, ok := index[key]; ok {
			duplicates++
			continue
		}
		index[key] = m
	}
	return index, duplicates
}
