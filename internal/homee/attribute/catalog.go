package attribute

import (
	"errors"
	"fmt"
	"strconv"
)

// ErrUnknown is returned when a name or code is not part of the catalog.
var ErrUnknown = errors.New("homee: unknown property")

// Code is the hub-assigned attribute type identifier.
//
// Codes are positional: the Nth entry of the catalog has code N. Entries are
// only ever appended, so a code never changes meaning between releases.
type Code int

// names is the versioned attribute catalog. Numeric entries are slots the
// hub reserves but does not document.
var names = [...]string{
	"None",                           // 0
	"OnOff",                          // 1
	"DimmingLevel",                   // 2
	"CurrentEnergyUse",               // 3
	"AccumulatedEnergyUse",           // 4
	"Temperature",                    // 5
	"TargetTemperature",              // 6
	"RelativeHumidity",               // 7
	"BatteryLevel",                   // 8
	"StatusLED",                      // 9
	"WindowPosition",                 // 10
	"Brightness",                     // 11
	"FloodAlarm",                     // 12
	"Siren",                          // 13
	"OpenClose",                      // 14
	"Position",                       // 15
	"SmokeAlarm",                     // 16
	"BlackoutAlarm",                  // 17
	"CurrentValvePosition",           // 18
	"BinaryInput",                    // 19
	"CO2Level",                       // 20
	"Pressure",                       // 21
	"Level",                          // 22
	"Color",                          // 23
	"Saturation",                     // 24
	"MotionAlarm",                    // 25
	"MotionSensitivity",              // 26
	"MotionInsensitivity",            // 27
	"MotionAlarmCancelationDelay",    // 28
	"WakeUpInterval",                 // 29
	"TamperAlarm",                    // 30
	"31",                             // 31
	"32",                             // 32
	"LinkQuality",                    // 33
	"InovaAlarmSystemState",          // 34
	"InovaAlarmGroupState",           // 35
	"InovaAlarmIntrusionState",       // 36
	"InovaAlarmErrorState",           // 37
	"InovaAlarmDoorState",            // 38
	"InovaAlarmExternalSensor",       // 39
	"ButtonState",                    // 40
	"Hue",                            // 41
	"ColorTemperature",               // 42
	"HardwareRevision",               // 43
	"FirmwareRevision",               // 44
	"SoftwareRevision",               // 45
	"LEDState",                       // 46
	"LEDStateWhenOn",                 // 47
	"LEDStateWhenOff",                // 48
	"49",                             // 49
	"50",                             // 50
	"51",                             // 51
	"HighTemperatureAlarm",           // 52
	"HighTemperatureAlarmTreshold",   // 53
	"LowTemperatureAlarm",            // 54
	"LowTemperatureAlarmTreshold",    // 55
	"TamperSensitivity",              // 56
	"TamperAlarmCancelationDelay",    // 57
	"BrightnessReportInterval",       // 58
	"TemperatureReportInterval",      // 59
	"MotionAlarmIndicationMode",      // 60
	"LEDBrightness",                  // 61
	"TamperAlarmIndicationMode",      // 62
	"SwitchType",                     // 63
	"TemperatureOffset",              // 64
	"AccumulatedWaterUse",            // 65
	"AccumulatedWaterUseLastMonth",   // 66
	"CurrentDate",                    // 67
	"LeakAlarm",                      // 68
	"BatteryLowAlarm",                // 69
	"MalfunctionAlarm",               // 70
	"LinkQualityAlarm",               // 71
	"Mode",                           // 72
	"73",                             // 73
	"74",                             // 74
	"Calibration",                    // 75
	"PresenceAlarm",                  // 76
	"MinimumAlarm",                   // 77
	"MaximumAlarm",                   // 78
	"OilAlarm",                       // 79
	"WaterAlarm",                     // 80
	"InovaAlarmInhibition",           // 81
	"InovaAlarmEjection",             // 82
	"InovaAlarmCommercialRef",        // 83
	"SerialNumber",                   // 84
	"RadiatorThermostatSummerMode",   // 85
	"InovaAlarmOperationMode",        // 86
	"AutomaticMode",                  // 87
	"PollingInterval",                // 88
	"FeedTemperature",                // 89
	"DisplayOrientation",             // 90
	"ManualOperation",                // 91
	"DeviceTemperature",              // 92
	"Sonometer",                      // 93
	"AirPressure",                    // 94
	"OutdoorRelativeHumidity",        // 95
	"IndoorRelativeHumidity",         // 96
	"OutdoorTemperature",             // 97
	"IndoorTemperature",              // 98
	"VentilationLevel",               // 99
	"VentilationMode",                // 100
	"RainFall",                       // 101
	"IntakeMotorRevs",                // 102
	"ExhaustMotorRevs",               // 103
	"OperatingHours",                 // 104
	"InovaAlarmSilentAlert",          // 105
	"InovaAlarmPreAlarm",             // 106
	"InovaAlarmDeterrenceAlarm",      // 107
	"InovaAlarmWarning",              // 108
	"InovaAlarmFireAlarm",            // 109
	"UpTime",                         // 110
	"DownTime",                       // 111
	"ShutterBlindMode",               // 112
	"ShutterSlatPosition",            // 113
	"ShutterSlatTime",                // 114
	"RestartDevice",                  // 115
	"SoilMoisture",                   // 116
	"WaterPlantAlarm",                // 117
	"MistPlantAlarm",                 // 118
	"FertilizePlantAlarm",            // 119
	"CoolPlantAlarm",                 // 120
	"HeatPlantAlarm",                 // 121
	"PutPlantIntoLightAlarm",         // 122
	"PutPlantIntoShadeAlarm",         // 123
	"ColorMode",                      // 124
	"TargetTemperatureLow",           // 125
	"TargetTemperatureHigh",          // 126
	"HVACMode",                       // 127
	"Away",                           // 128
	"HVACState",                      // 129
	"HasLeaf",                        // 130
	"SetEnergyConsumption",           // 131
	"COAlarm",                        // 132
	"RestoreLastKnownState",          // 133
	"LastImageReceived",              // 134
	"UpDown",                         // 135
	"RequestVOD",                     // 136
	"InovaDetectorHistory",           // 137
	"SurgeAlarm",                     // 138
	"LoadAlarm",                      // 139
	"OverloadAlarm",                  // 140
	"VoltageDropAlarm",               // 141
	"ShutterOrientation",             // 142
	"OverCurrentAlarm",               // 143
	"SirenMode",                      // 144
	"AlarmAutoStopTime",              // 145
	"WindSpeed",                      // 146
	"WindDirection",                  // 147
	"ComfortTemperature",             // 148
	"EcoTemperature",                 // 149
	"ReduceTemperature",              // 150
	"ProtectTemperature",             // 151
	"InovaSystemTime",                // 152
	"InovaCorrespondentProtocol",     // 153
	"InovaCorrespondentID",           // 154
	"InovaCorrespondentListen",       // 155
	"InovaCorrespondentNumber",       // 156
	"InovaCallCycleFireProtection",   // 157
	"InovaCallCycleIntrusion",        // 158
	"InovaCallCycleTechnicalProtect", // 159
	"InovaCallCycleFaults",           // 160
	"InovaCallCycleDeterrence",       // 161
	"InovaCallCyclePrealarm",         // 162
	"InovaPSTNRings",                 // 163
	"InovaDoubleCallRings",           // 164
	"InovaPIN",                       // 165
	"InovaPUK",                       // 166
	"InovaMainMediaSelection",        // 167
	"RainFallLastHour",               // 168
	"RainFallToday",                  // 169
	"IdentificationMode",             // 170
	"ButtonDoubleClick",              // 171
	"SirenTriggerMode",               // 172
	"UV",                             // 173
	"SlatSteps",                      // 174
	"EcoModeConfig",                  // 175
	"ButtonLongRelease",              // 176
	"VisualGong",                     // 177
	"AcousticGong",                   // 178
	"SurveillanceOnOff",              // 179
	"180",                            // 180
	"StorageAlarm",                   // 181
	"PowerSupplyAlarm",               // 182
	"NetatmoHome",                    // 183
	"NetatmoPerson",                  // 184
	"NetatmoLastEventPersonId",       // 185
	"NetatmoLastEventTime",           // 186
	"NetatmoLastEventType",           // 187
	"NetatmoLastEventIsKnownPerson",  // 188
	"NetatmoLastEventIsArrival",      // 189
	"PresenceTimeout",                // 190
	"KnownPersonPresence",            // 191
	"UnknownPersonPresence",          // 192
	"Current",                        // 193
	"Frequency",                      // 194
	"Voltage",                        // 195
	"PresenceAlarmCancelationDelay",  // 196
	"PresenceAlarmDetectionDelay",    // 197
	"PresenceAlarmThreshold",         // 198
	"NetatmoThermostatMode",          // 199
	"NetatmoRelayBoilerConnected",    // 200
	"NetatmoRelayMac",                // 201
	"NetatmoThermostatModeTimeout",   // 202
	"NetatmoThermostatNextChange",    // 203
	"NetatmoThermostatPrograms",      // 204
	"HomeeMode",                      // 205
	"ColorWhite",                     // 206
	"MovementAlarm",                  // 207
	"MovementSensitivity",            // 208
	"VibrationAlarm",                 // 209
	"VibrationSensitivity",           // 210
	"AverageEnergyUse",               // 211
	"BinaryInputMode",                // 212
	"DeviceStatus",                   // 213
	"DeviceRemainingTime",            // 214
	"DeviceStartTime",                // 215
	"DeviceProgram",                  // 216
	"217",                            // 217
	"218",                            // 218
	"219",                            // 219
	"220",                            // 220
	"221",                            // 221
	"222",                            // 222
	"ButtonPressed3Times",            // 223
	"ButtonPressed4Times",            // 224
	"ButtonPressed5Times",            // 225
	"RepeaterMode",                   // 226
	"AutoOffTime",                    // 227
	"CO2Alarm",                       // 228
	"InputEndpointConfiguration",     // 229
	"GustSpeed",                      // 230
	"GustDirection",                  // 231
	"LockState",                      // 232
	"AeotecSmartPlugLEDState",        // 233
	"AlarmDuration",                  // 234
	"DewPoint",                       // 235
	"Gesture",                        // 236
	"GestureSequenceLearningMode",    // 237
	"GestureSequence",                // 238
	"TotalCurrentEnergyUse",          // 239
	"TotalAccumulatedEnergyUse",      // 240
	"SunsetTime",                     // 241
	"SunriseTime",                    // 242
	"CurrentLocalWeatherCondition",   // 243
	"CurrentLocalTemperature",        // 244
	"CurrentLocalHumidity",           // 245
	"ForecastLocalWeatherCondition",  // 246
	"ForecastLocalTempMin",           // 247
	"ForecastLocalTempMax",           // 248
	"Armed",                          // 249
	"Floodlight",                     // 250
	"HumanDetected",                  // 251
	"VehicleDetected",                // 252
	"AnimalDetected",                 // 253
	"VacationMode",                   // 254
	"BlinkInterval",                  // 255
	"OtherMotionDetected",            // 256
	"IRCodeNumber",                   // 257
	"HeatingMode",                    // 258
	"DisplayAutoOffTime",             // 259
	"Backlight",                      // 260
	"OpenWindowDetectionSensibility", // 261
	"CurrentLocalWindSpeed",          // 262
	"CurrentLocalGustSpeed",          // 263
	"PowerOutputGrid",                // 264
	"PowerInputGrid",                 // 265
	"PowerPV",                        // 266
	"PowerLoad",                      // 267
	"PowerOutputBattery",             // 268
	"PowerInputBattery",              // 269
	"RelativeAutonomy",               // 270
	"RelativeSelfConsumption",        // 271
	"TotalCurrent",                   // 272
	"EnergyStorageLevel",             // 273
	"TotalEnergyLoad",                // 274
	"TotalEnergyProduction",          // 275
	"TotalEnergyOutputGrid",          // 276
	"TotalEnergyInputGrid",           // 277
	"TotalEnergyStored",              // 278
	"TotalEnergyRestored",            // 279
	"280",                            // 280
	"281",                            // 281
	"282",                            // 282
	"283",                            // 283
	"284",                            // 284
	"285",                            // 285
	"286",                            // 286
	"287",                            // 287
	"288",                            // 288
	"ReplaceFilterAlarm",             // 289
}

var codes = buildIndex()

func buildIndex() map[string]Code {
	idx := make(map[string]Code, len(names))
	for i, name := range names {
		idx[name] = Code(i)
	}
	return idx
}

// Well-known codes.
var (
	None                 = mustCode("None")
	OnOff                = mustCode("OnOff")
	DimmingLevel         = mustCode("DimmingLevel")
	CurrentEnergyUse     = mustCode("CurrentEnergyUse")
	AccumulatedEnergyUse = mustCode("AccumulatedEnergyUse")
	BatteryLevel         = mustCode("BatteryLevel")
	OpenClose            = mustCode("OpenClose")
	BinaryInput          = mustCode("BinaryInput")
	Color                = mustCode("Color")
	CurrentDate          = mustCode("CurrentDate")
	HomeeMode            = mustCode("HomeeMode")
	SunriseTime          = mustCode("SunriseTime")
	SunsetTime           = mustCode("SunsetTime")
	FirmwareRevision     = mustCode("FirmwareRevision")
	HardwareRevision     = mustCode("HardwareRevision")
	SoftwareRevision     = mustCode("SoftwareRevision")
	SerialNumber         = mustCode("SerialNumber")
)

func mustCode(name string) Code {
	c, ok := codes[name]
	if !ok {
		panic("attribute: catalog is missing " + strconv.Quote(name))
	}
	return c
}

// CodeForName returns the code registered for name.
func CodeForName(name string) (Code, error) {
	c, ok := codes[name]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnknown, name)
	}
	return c, nil
}

// NameForCode returns the catalog name of c.
func NameForCode(c Code) (string, error) {
	if c < 0 || int(c) >= len(names) {
		return "", fmt.Errorf("%w: code %d", ErrUnknown, int(c))
	}
	return names[c], nil
}

// Count returns the number of catalog entries.
func Count() int {
	return len(names)
}

// Known reports whether c is inside the catalog.
func (c Code) Known() bool {
	return c >= 0 && int(c) < len(names)
}

// String returns the catalog name, or the decimal code for unknown values.
func (c Code) String() string {
	if !c.Known() {
		return strconv.Itoa(int(c))
	}
	return names[c]
}
