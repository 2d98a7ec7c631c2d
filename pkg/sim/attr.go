package sim

// Attribute is a closed enum of the SNMP interface columns the engine
// serves. Dispatch on it is exhaustive: adding a column means extending the
// enum, the metadata table, and the reader switch, all checked at compile
// or test time rather than by string comparison at request time.
type Attribute int

const (
	// ifTable (1.3.6.1.2.1.2.2.1)
	IfIndex Attribute = iota
	IfDescr
	IfType
	IfMtu
	IfSpeed
	IfPhysAddress
	IfAdminStatus
	IfOperStatus
	IfLastChange
	IfInOctets
	IfInUcastPkts
	IfInDiscards
	IfInErrors
	IfOutOctets
	IfOutUcastPkts
	IfOutDiscards
	IfOutErrors

	// ifXTable (1.3.6.1.2.1.31.1.1.1)
	IfName
	IfInMulticastPkts
	IfInBroadcastPkts
	IfOutMulticastPkts
	IfOutBroadcastPkts
	IfHCInOctets
	IfHCInUcastPkts
	IfHCInMulticastPkts
	IfHCInBroadcastPkts
	IfHCOutOctets
	IfHCOutUcastPkts
	IfHCOutMulticastPkts
	IfHCOutBroadcastPkts
	IfLinkUpDownTrapEnable
	IfHighSpeed
	IfPromiscuousMode
	IfConnectorPresent
	IfAlias

	attributeCount
)

// attrInfo carries the static metadata behind one attribute.
type attrInfo struct {
	key      string
	extended bool // ifXTable column, else ifTable
	column   int  // column number within its table
	vtype    ValueType
	counter  bool // backed by a WrapCounter
}

// attrTable is indexed by Attribute. Order must match the enum.
var attrTable = [attributeCount]attrInfo{
	IfIndex:       {key: "ifIndex", column: 1, vtype: TypeInteger},
	IfDescr:       {key: "ifDescr", column: 2, vtype: TypeOctetString},
	IfType:        {key: "ifType", column: 3, vtype: TypeInteger},
	IfMtu:         {key: "ifMtu", column: 4, vtype: TypeInteger},
	IfSpeed:       {key: "ifSpeed", column: 5, vtype: TypeGauge32},
	IfPhysAddress: {key: "ifPhysAddress", column: 6, vtype: TypeOctetString},
	IfAdminStatus: {key: "ifAdminStatus", column: 7, vtype: TypeInteger},
	IfOperStatus:  {key: "ifOperStatus", column: 8, vtype: TypeInteger},
	IfLastChange:  {key: "ifLastChange", column: 9, vtype: TypeTimeTicks},
	IfInOctets:    {key: "ifInOctets", column: 10, vtype: TypeCounter32, counter: true},
	IfInUcastPkts: {key: "ifInUcastPkts", column: 11, vtype: TypeCounter32, counter: true},
	IfInDiscards:  {key: "ifInDiscards", column: 13, vtype: TypeCounter32, counter: true},
	IfInErrors:    {key: "ifInErrors", column: 14, vtype: TypeCounter32, counter: true},
	IfOutOctets:   {key: "ifOutOctets", column: 16, vtype: TypeCounter32, counter: true},
	IfOutUcastPkts: {key: "ifOutUcastPkts", column: 17, vtype: TypeCounter32, counter: true},
	IfOutDiscards:  {key: "ifOutDiscards", column: 19, vtype: TypeCounter32, counter: true},
	IfOutErrors:    {key: "ifOutErrors", column: 20, vtype: TypeCounter32, counter: true},

	IfName:               {key: "ifName", extended: true, column: 1, vtype: TypeOctetString},
	IfInMulticastPkts:    {key: "ifInMulticastPkts", extended: true, column: 2, vtype: TypeCounter32, counter: true},
	IfInBroadcastPkts:    {key: "ifInBroadcastPkts", extended: true, column: 3, vtype: TypeCounter32, counter: true},
	IfOutMulticastPkts:   {key: "ifOutMulticastPkts", extended: true, column: 4, vtype: TypeCounter32, counter: true},
	IfOutBroadcastPkts:   {key: "ifOutBroadcastPkts", extended: true, column: 5, vtype: TypeCounter32, counter: true},
	IfHCInOctets:         {key: "ifHCInOctets", extended: true, column: 6, vtype: TypeCounter64, counter: true},
	IfHCInUcastPkts:      {key: "ifHCInUcastPkts", extended: true, column: 7, vtype: TypeCounter64, counter: true},
	IfHCInMulticastPkts:  {key: "ifHCInMulticastPkts", extended: true, column: 8, vtype: TypeCounter64, counter: true},
	IfHCInBroadcastPkts:  {key: "ifHCInBroadcastPkts", extended: true, column: 9, vtype: TypeCounter64, counter: true},
	IfHCOutOctets:        {key: "ifHCOutOctets", extended: true, column: 10, vtype: TypeCounter64, counter: true},
	IfHCOutUcastPkts:     {key: "ifHCOutUcastPkts", extended: true, column: 11, vtype: TypeCounter64, counter: true},
	IfHCOutMulticastPkts: {key: "ifHCOutMulticastPkts", extended: true, column: 12, vtype: TypeCounter64, counter: true},
	IfHCOutBroadcastPkts: {key: "ifHCOutBroadcastPkts", extended: true, column: 13, vtype: TypeCounter64, counter: true},
	IfLinkUpDownTrapEnable: {key: "ifLinkUpDownTrapEnable", extended: true, column: 14, vtype: TypeInteger},
	IfHighSpeed:            {key: "ifHighSpeed", extended: true, column: 15, vtype: TypeGauge32},
	IfPromiscuousMode:      {key: "ifPromiscuousMode", extended: true, column: 16, vtype: TypeInteger},
	IfConnectorPresent:     {key: "ifConnectorPresent", extended: true, column: 17, vtype: TypeInteger},
	IfAlias:                {key: "ifAlias", extended: true, column: 18, vtype: TypeOctetString},
}

var attrByKey = func() map[string]Attribute {
	m := make(map[string]Attribute, attributeCount)
	for a := Attribute(0); a < attributeCount; a++ {
		m[attrTable[a].key] = a
	}
	return m
}()

// ParseAttribute resolves an attribute key like "ifHCInOctets".
func ParseAttribute(key string) (Attribute, bool) {
	a, ok := attrByKey[key]
	return a, ok
}

// Attributes returns all attributes in table order: ifTable columns first,
// then ifXTable columns, each ascending by column number.
func Attributes() []Attribute {
	out := make([]Attribute, attributeCount)
	for a := Attribute(0); a < attributeCount; a++ {
		out[a] = a
	}
	return out
}

// String returns the attribute key.
func (a Attribute) String() string {
	if a < 0 || a >= attributeCount {
		return "unknown"
	}
	return attrTable[a].key
}

// Extended reports whether the attribute is an ifXTable column.
func (a Attribute) Extended() bool {
	return attrTable[a].extended
}

// Column returns the attribute's column number within its table.
func (a Attribute) Column() int {
	return attrTable[a].column
}

// Type returns the SNMP value type the attribute is served as.
func (a Attribute) Type() ValueType {
	return attrTable[a].vtype
}

// IsCounter reports whether the attribute is backed by a wrapping counter.
func (a Attribute) IsCounter() bool {
	return attrTable[a].counter
}

// hcPartner maps each legacy-width counter stream to the 64-bit column that
// shares its rate. Error and discard counters have no HC partner.
var hcPartner = map[Attribute]Attribute{
	IfInOctets:         IfHCInOctets,
	IfOutOctets:        IfHCOutOctets,
	IfInUcastPkts:      IfHCInUcastPkts,
	IfOutUcastPkts:     IfHCOutUcastPkts,
	IfInMulticastPkts:  IfHCInMulticastPkts,
	IfOutMulticastPkts: IfHCOutMulticastPkts,
	IfInBroadcastPkts:  IfHCInBroadcastPkts,
	IfOutBroadcastPkts: IfHCOutBroadcastPkts,
}

var legacyPartner = func() map[Attribute]Attribute {
	m := make(map[Attribute]Attribute, len(hcPartner))
	for legacy, hc := range hcPartner {
		m[hc] = legacy
	}
	return m
}()

// baseStream maps a counter attribute to the stream whose rate drives it:
// identity for the twelve base streams, the legacy column for HC counters.
func baseStream(a Attribute) Attribute {
	if legacy, ok := legacyPartner[a]; ok {
		return legacy
	}
	return a
}

// widthPartner returns the other-width counter sharing a's stream, if any.
func widthPartner(a Attribute) (Attribute, bool) {
	if hc, ok := hcPartner[a]; ok {
		return hc, true
	}
	if legacy, ok := legacyPartner[a]; ok {
		return legacy, true
	}
	return 0, false
}
