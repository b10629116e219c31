package paystack

var fallbackBanks = []Bank{
	{ID: 1, Name: "Access Bank", Code: "044", Slug: "access-bank", Longcode: "044150149"},
	{ID: 5, Name: "First Bank of Nigeria", Code: "011", Slug: "first-bank-of-nigeria", Longcode: "011151003"},
	{ID: 16, Name: "FCMB", Code: "214", Slug: "fcmb", Longcode: "214150018"},
	{ID: 10, Name: "Ecobank Nigeria", Code: "050", Slug: "ecobank-nigeria", Longcode: "050150010"},
	{ID: 7, Name: "Fidelity Bank", Code: "070", Slug: "fidelity-bank", Longcode: "070150010"},
	{ID: 2, Name: "Guaranty Trust Bank", Code: "058", Slug: "guaranty-trust-bank", Longcode: "058152036"},
	{ID: 13, Name: "Kuda Bank", Code: "50211", Slug: "kuda-bank", Longcode: "50211"},
	{ID: 14, Name: "OPay", Code: "999992", Slug: "opay", Longcode: "999992"},
	{ID: 15, Name: "PalmPay", Code: "999991", Slug: "palmpay", Longcode: "999991"},
	{ID: 8, Name: "Polaris Bank", Code: "076", Slug: "polaris-bank", Longcode: "076151006"},
	{ID: 6, Name: "Stanbic IBTC Bank", Code: "221", Slug: "stanbic-ibtc-bank", Longcode: "221159522"},
	{ID: 12, Name: "Sterling Bank", Code: "232", Slug: "sterling-bank", Longcode: "232150016"},
	{ID: 9, Name: "Union Bank of Nigeria", Code: "032", Slug: "union-bank-of-nigeria", Longcode: "032080474"},
	{ID: 3, Name: "United Bank For Africa", Code: "033", Slug: "united-bank-for-africa", Longcode: "033153513"},
	{ID: 11, Name: "Wema Bank", Code: "035", Slug: "wema-bank", Longcode: "035150103"},
	{ID: 4, Name: "Zenith Bank", Code: "057", Slug: "zenith-bank", Longcode: "057150013"},
}

// FallbackBanks returns a copy of the built-in list of major Nigerian banks.
func FallbackBanks() []Bank {
	out := make([]Bank, len(fallbackBanks))
	for i, b := range fallbackBanks {
		b.Active = true
		b.Country = "Nigeria"
		b.Currency = "NGN"
		b.Type = "nuban"
		out[i] = b
	}
	return out
}
