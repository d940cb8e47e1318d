package legend

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/zombor/bead-tracker/internal/colorcode"
)

var _ = Describe("ParseText", func() {
	DescribeTable("extracting code/quantity pairs",
		func(raw string, expected []colorcode.Requirement) {
			Expect(ParseText(raw)).To(Equal(expected))
		},
		Entry("x-prefixed and parenthesized counts",
			"A7 x12 B3 (5)",
			[]colorcode.Requirement{{Code: "A7", Quantity: 12}, {Code: "B3", Quantity: 5}}),
		Entry("lowercase l read for a one",
			"Al2 3",
			[]colorcode.Requirement{{Code: "A12", Quantity: 3}}),
		Entry("over-long tokens",
			"ABCDEFG 99",
			[]colorcode.Requirement{}),
		Entry("multiplication sign and line breaks",
			"H2×40\r\nM15 ×  7",
			[]colorcode.Requirement{{Code: "H2", Quantity: 40}, {Code: "M15", Quantity: 7}}),
		Entry("missing counts default to one",
			"C4 D5 20",
			[]colorcode.Requirement{{Code: "C4", Quantity: 1}, {Code: "D5", Quantity: 20}}),
		Entry("padded codes are normalized",
			"a07 3, E010 2",
			[]colorcode.Requirement{{Code: "A7", Quantity: 3}, {Code: "E10", Quantity: 2}}),
		Entry("O and I read for digits after the series letter",
			"BO7 4 FI 2",
			[]colorcode.Requirement{{Code: "B7", Quantity: 4}, {Code: "F1", Quantity: 2}}),
		Entry("the series letter is kept as read",
			"O7 2",
			[]colorcode.Requirement{{Code: "O7", Quantity: 2}}),
		Entry("zero counts drop the entry",
			"A1 0 A2 5",
			[]colorcode.Requirement{{Code: "A2", Quantity: 5}}),
		Entry("overflowing counts drop the entry",
			"A1 99999999999999999999999 A2 5",
			[]colorcode.Requirement{{Code: "A2", Quantity: 5}}),
		Entry("duplicates within one pass are kept",
			"A1 2 A1 3",
			[]colorcode.Requirement{{Code: "A1", Quantity: 2}, {Code: "A1", Quantity: 3}}),
		Entry("empty input",
			"",
			[]colorcode.Requirement{}),
		Entry("pure noise",
			"~~ ## 123 ?? ---",
			[]colorcode.Requirement{}),
	)
})
