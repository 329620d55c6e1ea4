package model

import "strings"

// ===================================
// NEST CLASSIFICATION
// ===================================

type NestHeight string

const (
	NestHeightBelow4m NestHeight = "lager_dan_4_meter"
	NestHeightAbove4m NestHeight = "hoger_dan_4_meter"
)

type NestSize string

const (
	NestSizeSmall NestSize = "kleiner_dan_25_cm"
	NestSizeLarge NestSize = "groter_dan_25_cm"
)

type NestLocation string

const (
	NestLocationOutsideOnBuilding     NestLocation = "buiten_onbedekt_op_gebouw"
	NestLocationOutsideInTree         NestLocation = "buiten_onbedekt_in_boom_of_struik"
	NestLocationOutsideUnderConstruct NestLocation = "buiten_maar_overdekt_door_constructie"
	NestLocationOutsideNaturallyCover NestLocation = "buiten_natuurlijk_overdekt"
	NestLocationInsideBuilding        NestLocation = "binnen_in_gebouw_of_constructie"
)

type NestType string

const (
	NestTypeActiveEmbryonic NestType = "actief_embryonaal_nest"
	NestTypeActivePrimary   NestType = "actief_primair_nest"
	NestTypeActiveSecondary NestType = "actief_secundair_nest"
	NestTypeInactiveEmpty   NestType = "inactief_leeg_nest"
	NestTypePotential       NestType = "potentieel_nest"
)

// ===================================
// ERADICATION
// ===================================

type EradicationResult string

const (
	EradicationSuccessful   EradicationResult = "successful"
	EradicationUnsuccessful EradicationResult = "unsuccessful"
	EradicationUntreated    EradicationResult = "untreated"
	EradicationUnknown      EradicationResult = "unknown"
)

type EradicationProduct string

const (
	ProductPermasD           EradicationProduct = "permas_d"
	ProductLiquidNitrogen    EradicationProduct = "vloeibare_stikstof"
	ProductVespaFicamD       EradicationProduct = "vespa_ficam_d"
	ProductTopscorePal       EradicationProduct = "topscore_pal"
	ProductDiatomaceousEarth EradicationProduct = "diatomeeenaarde"
	ProductOther             EradicationProduct = "andere"
)

type EradicationMethod string

const (
	MethodFreezer       EradicationMethod = "diepvries"
	MethodTelescopePole EradicationMethod = "telescoopsteel"
	MethodBox           EradicationMethod = "doos"
	MethodLiquidSprayer EradicationMethod = "vloeistofverstuiver"
	MethodPowderSprayer EradicationMethod = "poederverstuiver"
	MethodVacuumCleaner EradicationMethod = "stofzuiger"
)

type EradicationProblem string

const (
	ProblemStings     EradicationProblem = "steken"
	ProblemNestFell   EradicationProblem = "nest_gevallen"
	ProblemDizziness  EradicationProblem = "duizeligheid"
	ProblemPoisonSpit EradicationProblem = "gif_spuiten"
)

type EradicationAftercare string

const (
	AftercareFullyRemoved     EradicationAftercare = "nest_volledig_verwijderd"
	AftercarePartiallyRemoved EradicationAftercare = "nest_gedeeltelijk_verwijderd"
	AftercareLeftHanging      EradicationAftercare = "nest_laten_hangen"
)

// ===================================
// VALIDATION STATUS
// ===================================

type ValidationStatus string

const (
	ValidationUnknown          ValidationStatus = "onbekend"
	ValidationApprovedEvidence ValidationStatus = "goedgekeurd_met_bewijs"
	ValidationApprovedAdmin    ValidationStatus = "goedgekeurd_door_admin"
	ValidationApprovedAuto     ValidationStatus = "goedgekeurd_automatische_validatie"
	ValidationInProgress       ValidationStatus = "in_behandeling"
	ValidationRejected         ValidationStatus = "afgewezen"
	ValidationNotYetAssessable ValidationStatus = "nog_niet_te_beoordelen"
)

var validationStatusCodes = map[string]ValidationStatus{
	"O": ValidationUnknown,
	"J": ValidationApprovedEvidence,
	"P": ValidationApprovedAdmin,
	"A": ValidationApprovedAuto,
	"I": ValidationInProgress,
	"N": ValidationRejected,
	"U": ValidationNotYetAssessable,
}

// ValidationStatusFromCode maps the single-letter feed code. Unknown codes
// map to the empty status.
func ValidationStatusFromCode(code string) ValidationStatus {
	return validationStatusCodes[strings.ToUpper(strings.TrimSpace(code))]
}

// ===================================
// LOOKUP TABLES
// ===================================

// Labels as the upstream feed (and the public UI) spells them. Lookups accept
// either the label or the code itself, case and whitespace insensitive.
var (
	nestHeightLabels = map[NestHeight]string{
		NestHeightBelow4m: "Lager dan 4 meter",
		NestHeightAbove4m: "Hoger dan 4 meter",
	}
	nestSizeLabels = map[NestSize]string{
		NestSizeSmall: "Kleiner dan 25 cm",
		NestSizeLarge: "Groter dan 25 cm",
	}
	nestLocationLabels = map[NestLocation]string{
		NestLocationOutsideOnBuilding:     "Buiten, onbedekt op gebouw",
		NestLocationOutsideInTree:         "Buiten, onbedekt in boom of struik",
		NestLocationOutsideUnderConstruct: "Buiten, maar overdekt door constructie",
		NestLocationOutsideNaturallyCover: "Buiten, natuurlijk overdekt",
		NestLocationInsideBuilding:        "Binnen, in gebouw of constructie",
	}
	nestTypeLabels = map[NestType]string{
		NestTypeActiveEmbryonic: "actief embryonaal nest",
		NestTypeActivePrimary:   "actief primair nest",
		NestTypeActiveSecondary: "actief secundair nest",
		NestTypeInactiveEmpty:   "inactief/leeg nest",
		NestTypePotential:       "potentieel nest",
	}
	eradicationResultLabels = map[EradicationResult]string{
		EradicationSuccessful:   "Succesvol behandeld",
		EradicationUnsuccessful: "Niet succesvol behandeld",
		EradicationUntreated:    "Niet behandeld",
		EradicationUnknown:      "Onbekend",
	}
	eradicationProductLabels = map[EradicationProduct]string{
		ProductPermasD:           "Permas-D",
		ProductLiquidNitrogen:    "Vloeibare stikstof",
		ProductVespaFicamD:       "Vespa Ficam D",
		ProductTopscorePal:       "Topscore PAL",
		ProductDiatomaceousEarth: "Diatomeeënaarde",
		ProductOther:             "Andere",
	}
	eradicationMethodLabels = map[EradicationMethod]string{
		MethodFreezer:       "Diepvries",
		MethodTelescopePole: "Telescoopsteel",
		MethodBox:           "Doos",
		MethodLiquidSprayer: "Vloeistofverstuiver",
		MethodPowderSprayer: "Poederverstuiver",
		MethodVacuumCleaner: "Stofzuiger",
	}
	eradicationProblemLabels = map[EradicationProblem]string{
		ProblemStings:     "Steken",
		ProblemNestFell:   "Nest gevallen",
		ProblemDizziness:  "Duizeligheid",
		ProblemPoisonSpit: "Gif spuiten",
	}
	eradicationAftercareLabels = map[EradicationAftercare]string{
		AftercareFullyRemoved:     "Nest volledig verwijderd",
		AftercarePartiallyRemoved: "Nest gedeeltelijk verwijderd",
		AftercareLeftHanging:      "Nest laten hangen",
	}
)

// lookupTable indexes every code by its normalized label and its normalized
// code so that free-text feed values resolve in O(1).
func lookupTable[T ~string](labels map[T]string) map[string]T {
	idx := make(map[string]T, len(labels)*2)
	for code, label := range labels {
		idx[NormalizeLabel(label)] = code
		idx[NormalizeLabel(string(code))] = code
	}
	return idx
}

var (
	nestHeightIndex   = lookupTable(nestHeightLabels)
	nestSizeIndex     = lookupTable(nestSizeLabels)
	nestLocationIndex = lookupTable(nestLocationLabels)
	nestTypeIndex     = lookupTable(nestTypeLabels)
	resultIndex       = lookupTable(eradicationResultLabels)
	productIndex      = lookupTable(eradicationProductLabels)
	methodIndex       = lookupTable(eradicationMethodLabels)
	problemIndex      = lookupTable(eradicationProblemLabels)
	aftercareIndex    = lookupTable(eradicationAftercareLabels)
)

// NormalizeLabel lowercases, trims and collapses internal whitespace.
// Underscores count as whitespace so codes and labels share one index.
func NormalizeLabel(s string) string {
	s = strings.ReplaceAll(s, "_", " ")
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

func LookupNestHeight(raw string) NestHeight     { return nestHeightIndex[NormalizeLabel(raw)] }
func LookupNestSize(raw string) NestSize         { return nestSizeIndex[NormalizeLabel(raw)] }
func LookupNestLocation(raw string) NestLocation { return nestLocationIndex[NormalizeLabel(raw)] }
func LookupNestType(raw string) NestType         { return nestTypeIndex[NormalizeLabel(raw)] }

func LookupEradicationResult(raw string) EradicationResult {
	return resultIndex[NormalizeLabel(raw)]
}

func LookupEradicationProduct(raw string) EradicationProduct {
	return productIndex[NormalizeLabel(raw)]
}

func LookupEradicationMethod(raw string) EradicationMethod {
	return methodIndex[NormalizeLabel(raw)]
}

func LookupEradicationProblem(raw string) EradicationProblem {
	return problemIndex[NormalizeLabel(raw)]
}

func LookupEradicationAftercare(raw string) EradicationAftercare {
	return aftercareIndex[NormalizeLabel(raw)]
}

// Label returns the display label, or the empty string when h is unset.
func (h NestHeight) Label() string           { return nestHeightLabels[h] }
func (s NestSize) Label() string             { return nestSizeLabels[s] }
func (l NestLocation) Label() string         { return nestLocationLabels[l] }
func (t NestType) Label() string             { return nestTypeLabels[t] }
func (r EradicationResult) Label() string    { return eradicationResultLabels[r] }
func (p EradicationProduct) Label() string   { return eradicationProductLabels[p] }
func (m EradicationMethod) Label() string    { return eradicationMethodLabels[m] }
func (p EradicationProblem) Label() string   { return eradicationProblemLabels[p] }
func (a EradicationAftercare) Label() string { return eradicationAftercareLabels[a] }

func IsValidNestType(t string) bool {
	_, ok := nestTypeLabels[NestType(t)]
	return ok
}

func IsValidEradicationResult(r string) bool {
	_, ok := eradicationResultLabels[EradicationResult(r)]
	return ok
}
