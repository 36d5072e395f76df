package core

// Field identifies one numeric field of an inspection record.
// The zero value is SerialNo; NumFields is the count of known numeric fields.
type Field int

const (
	FieldSerialNo Field = iota
	FieldDpi
	FieldBvFinal
	FieldAktiSelf
	FieldOfferedQtyCtn
	FieldOfferedQtyPacks
	FieldNoOfInspection
	FieldSampleSize

	// Outcome flags, each 0 or 1.
	FieldPass
	FieldFail
	FieldAbort
	FieldPending

	// Required OQL and actual findings.
	FieldMajor
	FieldMinor
	FieldOql
	FieldPercentAllowed
	FieldCritical
	FieldActualMajor
	FieldActualMinor
	FieldActualOql

	// Major defect details.
	FieldPulledTerry
	FieldRawEdge
	FieldWeaving
	FieldUncutThread
	FieldStainMajor
	FieldSkipStitch
	FieldBrokenStitch
	FieldRunoffStitch
	FieldPoorShape
	FieldPleat
	FieldInsecureLabel
	FieldMissingLabel
	FieldContaminationMajor
	FieldSlantLabel
	FieldDamageFabric
	FieldHole
	FieldLooseStitch

	// Minor defect details.
	FieldSingleUntrimmedThread
	FieldContaminationMinor
	FieldFlyYarn
	FieldDustMark
	FieldStainMinor

	NumFields
)

var fieldNames = [NumFields]string{
	FieldSerialNo:        "serialNo",
	FieldDpi:             "dpi",
	FieldBvFinal:         "bvFinal",
	FieldAktiSelf:        "aktiSelf",
	FieldOfferedQtyCtn:   "offeredQtyCtn",
	FieldOfferedQtyPacks: "offeredQtyPacks",
	FieldNoOfInspection:  "noOfInspection",
	FieldSampleSize:      "sampleSize",

	FieldPass:    "pass",
	FieldFail:    "fail",
	FieldAbort:   "abort",
	FieldPending: "pending",

	FieldMajor:          "major",
	FieldMinor:          "minor",
	FieldOql:            "oql",
	FieldPercentAllowed: "percentAllowed",
	FieldCritical:       "critical",
	FieldActualMajor:    "actualMajor",
	FieldActualMinor:    "actualMinor",
	FieldActualOql:      "actualOql",

	FieldPulledTerry:        "pulledTerry",
	FieldRawEdge:            "rawEdge",
	FieldWeaving:            "weaving",
	FieldUncutThread:        "uncutThread",
	FieldStainMajor:         "stainMajor",
	FieldSkipStitch:         "skipStitch",
	FieldBrokenStitch:       "brokenStitch",
	FieldRunoffStitch:       "runoffStitch",
	FieldPoorShape:          "poorShape",
	FieldPleat:              "pleat",
	FieldInsecureLabel:      "insecureLabel",
	FieldMissingLabel:       "missingLabel",
	FieldContaminationMajor: "contaminationMajor",
	FieldSlantLabel:         "slantLabel",
	FieldDamageFabric:       "damageFabric",
	FieldHole:               "hole",
	FieldLooseStitch:        "looseStitch",

	FieldSingleUntrimmedThread: "singleUntrimmedThread",
	FieldContaminationMinor:    "contaminationMinor",
	FieldFlyYarn:               "flyYarn",
	FieldDustMark:              "dustMark",
	FieldStainMinor:            "stainMinor",
}

var fieldsByName = func() map[string]Field {
	m := make(map[string]Field, NumFields)
	for f, name := range fieldNames {
		m[name] = Field(f)
	}
	return m
}()

// String returns the wire name of the field.
func (f Field) String() string {
	if f < 0 || f >= NumFields {
		return "unknown"
	}
	return fieldNames[f]
}

// FieldByName looks up a numeric field by its wire name.
func FieldByName(name string) (Field, bool) {
	f, ok := fieldsByName[name]
	return f, ok
}

// OutcomeFields are the mutually exclusive outcome flags.
var OutcomeFields = []Field{FieldPass, FieldFail, FieldAbort, FieldPending}

// MajorDefectFields lists the major defect counters in display order.
var MajorDefectFields = []Field{
	FieldPulledTerry, FieldRawEdge, FieldWeaving, FieldUncutThread, FieldStainMajor,
	FieldSkipStitch, FieldBrokenStitch, FieldRunoffStitch, FieldPoorShape, FieldPleat,
	FieldInsecureLabel, FieldMissingLabel, FieldContaminationMajor, FieldSlantLabel,
	FieldDamageFabric, FieldHole, FieldLooseStitch,
}

// MinorDefectFields lists the minor defect counters in display order.
var MinorDefectFields = []Field{
	FieldSingleUntrimmedThread, FieldContaminationMinor, FieldFlyYarn, FieldDustMark, FieldStainMinor,
}

// Wire names of the non-numeric fields.
const (
	KeyID               = "_id"
	KeyInspectionID     = "inspectionId"
	KeyYear             = "year"
	KeyMonth            = "month"
	KeyInspectionDate   = "inspectionDate"
	KeyServicePerformed = "servicePerformed"
	KeyInspectionType   = "inspectionType"
	KeyInspectorName    = "inspectorName"
	KeyInspectionStatus = "inspectionStatus"
)

// Columns is the canonical field order, matching the inspection form sections.
var Columns = []string{
	"serialNo", KeyYear, KeyMonth, KeyInspectionID, KeyInspectionDate, KeyServicePerformed,
	KeyInspectionType, "dpi", "bvFinal", "aktiSelf", KeyInspectorName, "offeredQtyCtn",
	"offeredQtyPacks", "noOfInspection", "pass", "fail", "abort", "pending", KeyInspectionStatus, "sampleSize",
	"major", "minor", "oql", "percentAllowed",
	"critical", "actualMajor", "actualMinor", "actualOql",
	"pulledTerry", "rawEdge", "weaving", "uncutThread", "stainMajor", "skipStitch", "brokenStitch",
	"runoffStitch", "poorShape", "pleat", "insecureLabel", "missingLabel", "contaminationMajor",
	"slantLabel", "damageFabric", "hole", "looseStitch",
	"singleUntrimmedThread", "contaminationMinor", "flyYarn", "dustMark", "stainMinor",
}

// SelfSet is the label used when a categorical field is absent.
const SelfSet = "Self Set"

// Inspection status labels derived from the outcome flags.
const (
	StatusPassed  = "Passed"
	StatusFailed  = "Failed"
	StatusAborted = "Aborted"
	StatusPending = "Pending"
)

// Months holds the accepted month names in calendar order.
var Months = []string{
	"January", "February", "March", "April", "May", "June", "July", "August",
	"September", "October", "November", "December",
}

// EventInspectionUpdate is the push event announcing that the inspection set
// changed upstream.
const EventInspectionUpdate = "inspection:update"
